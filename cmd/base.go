// Package cmd is the base package for executables built from go-homestead.
package cmd

import (
	"reflect"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/homestead-network/go-homestead/cmd/flags"
	cfg "github.com/homestead-network/go-homestead/config"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Branch is the git branch used to build the app. Designed to be overwritten by make.
	Branch string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// EnsureCLIFlags applies flags the user set on top of the loaded config.
// Viper can't map flat flag names onto the nested config struct, so changed
// flags are matched to fields by their mapstructure tag.
func EnsureCLIFlags(cmd *cobra.Command, appCFG *cfg.Config) error {
	assignFields := func(p reflect.Type, elem reflect.Value, name string) {
		for i := 0; i < p.NumField(); i++ {
			if p.Field(i).Tag.Get("mapstructure") != name {
				continue
			}
			var val interface{}
			switch p.Field(i).Type.String() {
			case "bool":
				val = viper.GetBool(name)
			case "string":
				val = viper.GetString(name)
			case "int":
				val = viper.GetInt(name)
			case "uint64":
				val = viper.GetUint64(name)
			case "[]string":
				val = viper.GetStringSlice(name)
			case "time.Duration":
				val = viper.GetDuration(name)
			case "map[string]uint64":
				val = flags.CastStringToMapStringUint64(viper.GetString(name))
			default:
				val = viper.Get(name)
			}
			elem.Field(i).Set(reflect.ValueOf(val))
			return
		}
	}

	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		for _, section := range []interface{}{
			&appCFG.BaseConfig,
			&appCFG.Genesis,
			&appCFG.Consensus,
			&appCFG.Rewards,
			&appCFG.P2P,
			&appCFG.Sync,
			&appCFG.Logging,
		} {
			elem := reflect.ValueOf(section).Elem()
			assignFields(elem.Type(), elem, f.Name)
		}
	})
	return nil
}
