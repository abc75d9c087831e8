// Command opusdec decodes Opus audio to WAV files.
//
// The decode subcommand reads Ogg Opus (.opus) files or raw opus_demo
// bitstreams and writes 16-bit PCM WAV. The codecs subcommand lists
// the decoders available in the codec registry.
package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is stamped at release time via -ldflags "-X main.version=...".
var version = "dev"

var log = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "opusdec",
	Short: "Opus audio decoder",
	Long: `opusdec decodes Opus audio (RFC 6716) to WAV.

Input is an Ogg Opus file as produced by opusenc, or a raw opus_demo
bitstream when --raw is given. Output is 16-bit PCM WAV at 48 kHz or
any other rate Opus supports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stderr)
		if viper.GetBool("verbose") {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	viper.SetEnvPrefix("opusdec")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
