// env.go environment variable overrides
package conf

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. REPLAY_CLIP_OUTPUTDIR.
const EnvPrefix = "REPLAY"

// bindEnvVars maps REPLAY_<SECTION>_<KEY> variables onto config keys.
func bindEnvVars() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}
