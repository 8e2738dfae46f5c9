package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rtengine",
	Short: "Non-destructive multitrack audio engine",
	Long: `rtengine - a realtime audio engine with a lock-free disk-streaming layer:
clip/track/bus mixing graph driven by a single realtime callback, fed by
background disk-I/O workers over a two-sided slot ring.

Commands:
  - play:      play a single audio file through the realtime engine as a one-clip sheet
  - playlist:  play a sequence of audio files the same way, one after another
  - live:      play a YAML session descriptor through the realtime engine and an audio device
  - render:    render a YAML session descriptor (tracks/clips/fades) offline to a WAV file
  - peaks:     build a peak (waveform) file for an audio source
  - transform: convert an audio file's sample rate and write it out as WAV`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
