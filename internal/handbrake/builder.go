package handbrake

// Options is the engine configuration shared by every job.
type Options struct {
	Binary     string
	Preset     string
	PresetFile string // Optional --preset-import-file.
	Verbose    bool   // Engine verbosity, not ours.
}

// Build constructs the complete HandBrakeCLI argument slice for one file,
// binary first:
//
//	HandBrakeCLI [--preset-import-file F] --preset P -i IN -o OUT --all-subtitles --markers [--verbose=1]
func Build(o Options, input, output string) []string {
	args := make([]string, 0, 12)
	args = append(args, o.Binary)

	// --- Preset ---
	if o.PresetFile != "" {
		args = append(args, "--preset-import-file", o.PresetFile)
	}
	args = append(args, "--preset", o.Preset)

	// --- Input / output ---
	args = append(args, "-i", input, "-o", output)

	// --- Stream carry-over ---
	args = append(args, "--all-subtitles", "--markers")

	if o.Verbose {
		args = append(args, "--verbose=1")
	}
	return args
}
