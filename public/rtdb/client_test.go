package rtdb_test

import (
	"strings"
	"testing"

	"github.com/google/flatbuffers/reflection"
	"github.com/stretchr/testify/require"

	"github.com/embeddedrealtime/rtdbclient/internal/clientconfig"
	"github.com/embeddedrealtime/rtdbclient/internal/record"
	"github.com/embeddedrealtime/rtdbclient/internal/testschema"
	"github.com/embeddedrealtime/rtdbclient/public/rtdb"
)

func testConfig() *clientconfig.Config {
	return &clientconfig.Config{
		Host:                   "db.example.com",
		Port:                   443,
		BackoffInitialInterval: 0,
		BackoffMaxInterval:     0,
		SchemaRootType:         "Doc",
	}
}

func TestParseStreamDeliversMatchedRecord(t *testing.T) {
	text, binary := testschema.Build([]testschema.ObjectSpec{
		{Name: "Doc", Fields: []testschema.FieldSpec{{Name: "v", Base: reflection.BaseTypeInt}}},
	}, "Doc")

	client, err := rtdb.New(testConfig(), text, binary, nil)
	require.NoError(t, err)
	defer client.Close()

	var got []*record.Record
	ok, correlationID := client.ParseStream(
		strings.NewReader(`{"v":7}`),
		rtdb.Subscription{Pattern: nil, TypeName: "Doc", Sink: func(r *record.Record) bool {
			got = append(got, r)
			return true
		}},
		rtdb.Subscription{},
	)

	require.True(t, ok)
	require.NotEmpty(t, correlationID)
	require.Len(t, got, 1)
	v, ok := got[0].Int64("v")
	require.True(t, ok)
	require.Equal(t, int64(7), v)
}

func TestNewRejectsInvalidCACert(t *testing.T) {
	text, binary := testschema.Build([]testschema.ObjectSpec{
		{Name: "Doc", Fields: []testschema.FieldSpec{{Name: "v", Base: reflection.BaseTypeInt}}},
	}, "Doc")

	cfg := testConfig()
	cfg.TLSCACertPEM = "not a cert"

	_, err := rtdb.New(cfg, text, binary, nil)
	require.ErrorIs(t, err, rtdb.ErrCACertInvalid)
}

func TestNewRejectsInvalidSchema(t *testing.T) {
	cfg := testConfig()
	_, err := rtdb.New(cfg, nil, nil, nil)
	require.Error(t, err)
}
