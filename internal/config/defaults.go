package config

const (
	defaultInput            = "filled box 1x1x6-hi nohole_b.stl"
	defaultOutputDir        = "."
	defaultWeldTolerance    = 1e-6
	defaultMinArea          = 1e-12
	defaultAngularTolerance = 1e-4
	defaultUnit             = "mm"
	defaultLogLevel         = "warn"
	defaultTimeout          = 300
	defaultMaxInputSize     = "50MiB"
)

// Default returns a Config populated with built-in defaults.
func Default() Config {
	return Config{
		Convert: Convert{
			Input:           defaultInput,
			OutputDir:       defaultOutputDir,
			SplitComponents: true,
			OpenSCADTimeout: defaultTimeout,
			MaxInputSize:    defaultMaxInputSize,
		},
		Clean: Clean{
			WeldTolerance:    defaultWeldTolerance,
			MinArea:          defaultMinArea,
			FixOrientation:   true,
			MergeCoplanar:    true,
			AngularTolerance: defaultAngularTolerance,
		},
		Step: Step{
			Unit: defaultUnit,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
