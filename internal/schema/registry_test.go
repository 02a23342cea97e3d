package schema_test

import (
	"testing"

	"github.com/google/flatbuffers/reflection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedrealtime/rtdbclient/internal/schema"
	"github.com/embeddedrealtime/rtdbclient/internal/testschema"
)

func simpleSchema() (text, binary []byte) {
	return testschema.Build([]testschema.ObjectSpec{
		{
			Name: "Doc",
			Fields: []testschema.FieldSpec{
				{Name: "v", Base: reflection.BaseTypeInt},
				{Name: "name", Base: reflection.BaseTypeString},
			},
		},
	}, "Doc")
}

func TestRegistryNotReadyBeforeInit(t *testing.T) {
	reg := schema.NewRegistry()
	assert.False(t, reg.Ready())
	_, err := reg.ReserializeToBinary([]byte(`{"v":1}`), "Doc")
	assert.Error(t, err)
}

func TestRegistryInitAndLookup(t *testing.T) {
	text, binary := simpleSchema()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Init(text, binary))
	assert.True(t, reg.Ready())

	obj, ok := reg.LookupObjectByName("Doc")
	require.True(t, ok)
	assert.Equal(t, "Doc", string(obj.Name()))

	root, ok := reg.RootObject()
	require.True(t, ok)
	assert.Equal(t, "Doc", string(root.Name()))

	_, ok = reg.LookupObjectByName("Nonexistent")
	assert.False(t, ok)
}

func TestRegistryInitRejectsBadTextBlob(t *testing.T) {
	_, binary := simpleSchema()
	reg := schema.NewRegistry()
	err := reg.Init([]byte("not terminated"), binary)
	assert.Error(t, err)
}

func TestRegistryReserializeRoundTrip(t *testing.T) {
	text, binary := simpleSchema()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Init(text, binary))

	out, err := reg.ReserializeToBinary([]byte(`{"v":7,"name":"hi"}`), "Doc")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRegistryReserializeUnknownRoot(t *testing.T) {
	text, binary := simpleSchema()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Init(text, binary))

	_, err := reg.ReserializeToBinary([]byte(`{"v":7}`), "NoSuchType")
	assert.Error(t, err)
}

func TestRegistryReload(t *testing.T) {
	text, binary := simpleSchema()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Init(text, binary))

	text2, binary2 := testschema.Build([]testschema.ObjectSpec{
		{
			Name: "Doc",
			Fields: []testschema.FieldSpec{
				{Name: "v", Base: reflection.BaseTypeInt},
			},
		},
	}, "Doc")
	require.NoError(t, reg.Reload(text2, binary2))
	assert.True(t, reg.Ready())
}
