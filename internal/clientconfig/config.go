package clientconfig

import (
	"fmt"
	"time"
)

// Spec is the field tree an embedded client config is checked against:
// endpoint, TLS, JWT signing, retry/backoff, and schema blob paths, rather
// than a full pluggable component-registry surface.
func Spec() FieldSpec {
	return NewObjectField("rtdbclient",
		NewStringField("host").Description("Hostname of the HTTPS endpoint."),
		NewIntField("port").Description("TCP port of the HTTPS endpoint.").HasDefault(443),
		NewObjectField("tls",
			NewStringField("cacert_pem").Description("PEM-encoded CA certificate used to verify the endpoint.").Optional(),
			NewBoolField("insecure_skip_verify").Description("Disable certificate verification; test use only.").HasDefault(false),
		).Optional(),
		NewObjectField("jwt",
			NewStringField("private_key_pem").Description("PEM-encoded RSA private key used to sign bearer tokens."),
			NewStringField("issuer").Description("JWT issuer claim."),
			NewDurationField("ttl").Description("Lifetime of a minted bearer token.").HasDefault("5m"),
		).Optional().Advanced(),
		NewObjectField("backoff",
			NewDurationField("initial_interval").HasDefault("20ms"),
			NewDurationField("max_interval").HasDefault("2s"),
		).Optional().Advanced(),
		NewObjectField("schema",
			NewStringField("text_path").Description("Path to the .fbs-derived text schema blob."),
			NewStringField("binary_path").Description("Path to the binary reflection schema blob."),
			NewStringField("root_type").Description("Fully-qualified root table type name."),
		),
	)
}

// Config is the parsed, typed form of Spec(). Construct one with FromMap
// rather than filling this struct directly, so defaults and required-field
// checks run the same way for every caller.
type Config struct {
	Host string
	Port int

	TLSCACertPEM          string
	TLSInsecureSkipVerify bool

	JWTPrivateKeyPEM string
	JWTIssuer        string
	JWTTTL           time.Duration

	BackoffInitialInterval time.Duration
	BackoffMaxInterval     time.Duration

	SchemaTextPath   string
	SchemaBinaryPath string
	SchemaRootType   string
}

// FromMap parses a nested map (as decoded from JSON/YAML config) against
// Spec(), applying defaults for every optional field left unset and
// reporting every missing required field at once rather than stopping at
// the first one -- the same "collect every problem" shape as
// internal/docs/field.go's lint pass, scaled down to a single error.
func FromMap(m map[string]any) (*Config, error) {
	var errs []error
	get := func(path ...string) (any, bool) {
		cur := any(m)
		for _, p := range path {
			asMap, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := asMap[p]
			if !ok {
				return nil, false
			}
			cur = v
		}
		return cur, true
	}
	requireString := func(path ...string) string {
		v, ok := get(path...)
		if !ok {
			errs = append(errs, fmt.Errorf("clientconfig: missing required field %q", joinPath(path)))
			return ""
		}
		s, ok := v.(string)
		if !ok {
			errs = append(errs, fmt.Errorf("clientconfig: field %q must be a string", joinPath(path)))
			return ""
		}
		return s
	}
	optString := func(def string, path ...string) string {
		v, ok := get(path...)
		if !ok {
			return def
		}
		s, ok := v.(string)
		if !ok {
			errs = append(errs, fmt.Errorf("clientconfig: field %q must be a string", joinPath(path)))
			return def
		}
		return s
	}
	optInt := func(def int, path ...string) int {
		v, ok := get(path...)
		if !ok {
			return def
		}
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		default:
			errs = append(errs, fmt.Errorf("clientconfig: field %q must be an integer", joinPath(path)))
			return def
		}
	}
	optBool := func(def bool, path ...string) bool {
		v, ok := get(path...)
		if !ok {
			return def
		}
		b, ok := v.(bool)
		if !ok {
			errs = append(errs, fmt.Errorf("clientconfig: field %q must be a boolean", joinPath(path)))
			return def
		}
		return b
	}
	optDuration := func(def string, path ...string) time.Duration {
		s := optString(def, path...)
		d, err := time.ParseDuration(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("clientconfig: field %q: %w", joinPath(path), err))
			return 0
		}
		return d
	}

	cfg := &Config{
		Host: requireString("rtdbclient", "host"),
		Port: optInt(443, "rtdbclient", "port"),

		TLSCACertPEM:          optString("", "rtdbclient", "tls", "cacert_pem"),
		TLSInsecureSkipVerify: optBool(false, "rtdbclient", "tls", "insecure_skip_verify"),

		JWTPrivateKeyPEM: optString("", "rtdbclient", "jwt", "private_key_pem"),
		JWTIssuer:        optString("", "rtdbclient", "jwt", "issuer"),
		JWTTTL:           optDuration("5m", "rtdbclient", "jwt", "ttl"),

		BackoffInitialInterval: optDuration("20ms", "rtdbclient", "backoff", "initial_interval"),
		BackoffMaxInterval:     optDuration("2s", "rtdbclient", "backoff", "max_interval"),

		SchemaTextPath:   requireString("rtdbclient", "schema", "text_path"),
		SchemaBinaryPath: requireString("rtdbclient", "schema", "binary_path"),
		SchemaRootType:   requireString("rtdbclient", "schema", "root_type"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("clientconfig: %d invalid field(s): %w", len(errs), joinErrs(errs))
	}
	return cfg, nil
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}

func joinErrs(errs []error) error {
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
