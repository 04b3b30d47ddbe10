package plan

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, yml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yml)))
	return v
}
