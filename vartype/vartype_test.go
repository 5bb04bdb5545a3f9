package vartype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdent(t *testing.T) {
	e, err := Parse("int32")
	require.NoError(t, err)
	assert.Equal(t, KindIdent, e.Kind)
	assert.Equal(t, "int32", e.Name)
}

func TestParseTemplate(t *testing.T) {
	e, err := Parse("CNetworkUtlVectorBase< CHandle< CBaseEntity > >")
	require.NoError(t, err)
	assert.Equal(t, KindTemplate, e.Kind)
	assert.Equal(t, "CNetworkUtlVectorBase", e.Name)
	require.NotNil(t, e.Elem)
	assert.Equal(t, KindTemplate, e.Elem.Kind)
	assert.Equal(t, "CHandle", e.Elem.Name)
}

func TestParseArrayLiteral(t *testing.T) {
	e, err := Parse("char[256]")
	require.NoError(t, err)
	assert.Equal(t, KindArray, e.Kind)
	n, err := ResolveArrayLen(e)
	require.NoError(t, err)
	assert.Equal(t, 256, n)
}

func TestParseArrayNamedConstant(t *testing.T) {
	e, err := Parse("uint8[MAX_ITEM_STOCKS]")
	require.NoError(t, err)
	n, err := ResolveArrayLen(e)
	require.NoError(t, err)
	assert.Equal(t, 24, n)
}

func TestParsePointer(t *testing.T) {
	e, err := Parse("CBodyComponent*")
	require.NoError(t, err)
	assert.Equal(t, KindPointer, e.Kind)
	assert.Equal(t, "CBodyComponent", e.Name)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("CUtlVector<")
	require.Error(t, err)
}
