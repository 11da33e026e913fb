package tools

import (
	"flag"
)

const (
	CommandOutputs = "outputs"
	CommandLoad    = "load"
	CommandPick    = "pick"
	CommandScan    = "scan"
	CommandBuild   = "build"
)

var Commands = []string{CommandOutputs, CommandLoad, CommandPick, CommandScan, CommandBuild}

type FlagsGlobal struct {
	Help    *bool   `json:"help"`
	Version *bool   `json:"version"`
	Config  *string `json:"config"`
}

type LogFlags struct {
	Silent       *bool `json:"silent"`
	LogTimestamp *bool `json:"timestamp"`
}

// ModelFlags select the model to stream, either a revision in the cloud or a local EPT folder
type ModelFlags struct {
	Model    *int64  `json:"model"`
	Revision *int64  `json:"revision"`
	Format   *string `json:"format"`
	Local    *string `json:"local"`
}

type FlagsForCommandOutputs struct {
	ModelFlags
	LogFlags
}

type FlagsForCommandLoad struct {
	ModelFlags
	LogFlags
	Frames      *int     `json:"frames"`
	PointBudget *int     `json:"point_budget"`
	ColorType   *string  `json:"color_type"`
	Hide        *string  `json:"hide"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
}

type FlagsForCommandPick struct {
	FlagsForCommandLoad
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type FlagsForCommandScan struct {
	LogFlags
	Input     *string `json:"input"`
	Recursive *bool   `json:"recursive"`
}

type FlagsForCommandBuild struct {
	LogFlags
	Input            *string  `json:"input"`
	Output           *string  `json:"output"`
	FolderProcessing *bool    `json:"folder"`
	Recursive        *bool    `json:"recursive"`
	ZOffset          *float64 `json:"z_offset"`
	GridCellMaxSize  *float64 `json:"grid_max_size"`
	GridCellMinSize  *float64 `json:"grid_min_size"`
	HierarchyStep    *int     `json:"hierarchy_step"`
}

func ParseFlagsGlobal() FlagsGlobal {
	help := defineBoolFlagCommand(flag.CommandLine, "help", "h", false, "Displays this help.")
	// -v is taken by the glog verbosity flag
	version := defineBoolFlagCommand(flag.CommandLine, "version", "", false, "Displays the version of pcstream.")
	config := defineStringFlagCommand(flag.CommandLine, "config", "c", "", "Path of the yaml configuration file. Defaults to pcstream.yaml in the working directory.")

	flag.Parse()

	return FlagsGlobal{
		Help:    help,
		Version: version,
		Config:  config,
	}
}

func defineLogFlags(flagCommand *flag.FlagSet) LogFlags {
	return LogFlags{
		Silent:       defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages."),
		LogTimestamp: defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages."),
	}
}

func defineModelFlags(flagCommand *flag.FlagSet, defaultFormat string) ModelFlags {
	return ModelFlags{
		Model:    defineInt64FlagCommand(flagCommand, "model", "m", 0, "Id of the model in the cloud project."),
		Revision: defineInt64FlagCommand(flagCommand, "revision", "r", 0, "Id of the model revision."),
		Format:   defineStringFlagCommand(flagCommand, "format", "f", defaultFormat, "Output format, one of 'ept-pointcloud', 'reveal-directory' or 'all-outputs'."),
		Local:    defineStringFlagCommand(flagCommand, "local", "l", "", "Streams the EPT dataset in this folder instead of a cloud revision."),
	}
}

func ParseFlagsForCommandOutputs(args []string) FlagsForCommandOutputs {
	flagCommand := flag.NewFlagSet("command-outputs", flag.ExitOnError)

	flags := FlagsForCommandOutputs{
		ModelFlags: defineModelFlags(flagCommand, "all-outputs"),
		LogFlags:   defineLogFlags(flagCommand),
	}
	_ = flagCommand.Parse(args)
	return flags
}

func defineLoadFlags(flagCommand *flag.FlagSet) FlagsForCommandLoad {
	return FlagsForCommandLoad{
		ModelFlags:  defineModelFlags(flagCommand, "ept-pointcloud"),
		LogFlags:    defineLogFlags(flagCommand),
		Frames:      defineIntFlagCommand(flagCommand, "frames", "n", 20, "Number of render passes to stream the model for."),
		PointBudget: defineIntFlagCommand(flagCommand, "point-budget", "b", 0, "Overrides the configured point budget when positive."),
		ColorType:   defineStringFlagCommand(flagCommand, "color", "", "", "Overrides the configured point color type."),
		Hide:        defineStringFlagCommand(flagCommand, "hide", "", "", "Comma separated classification codes to hide."),
		Width:       defineFloat64FlagCommand(flagCommand, "width", "w", 1920, "Width of the virtual viewport in pixels."),
		Height:      defineFloat64FlagCommand(flagCommand, "height", "", 1080, "Height of the virtual viewport in pixels."),
	}
}

func ParseFlagsForCommandLoad(args []string) FlagsForCommandLoad {
	flagCommand := flag.NewFlagSet("command-load", flag.ExitOnError)
	flags := defineLoadFlags(flagCommand)
	_ = flagCommand.Parse(args)
	return flags
}

func ParseFlagsForCommandPick(args []string) FlagsForCommandPick {
	flagCommand := flag.NewFlagSet("command-pick", flag.ExitOnError)

	flags := FlagsForCommandPick{
		FlagsForCommandLoad: defineLoadFlags(flagCommand),
		X:                   defineFloat64FlagCommand(flagCommand, "x", "", 0, "Horizontal normalized device coordinate of the pick, in [-1, 1]."),
		Y:                   defineFloat64FlagCommand(flagCommand, "y", "", 0, "Vertical normalized device coordinate of the pick, in [-1, 1]."),
	}
	_ = flagCommand.Parse(args)
	return flags
}

func ParseFlagsForCommandScan(args []string) FlagsForCommandScan {
	flagCommand := flag.NewFlagSet("command-scan", flag.ExitOnError)

	flags := FlagsForCommandScan{
		LogFlags:  defineLogFlags(flagCommand),
		Input:     defineStringFlagCommand(flagCommand, "input", "i", ".", "Specifies the folder to look for EPT datasets in."),
		Recursive: defineBoolFlagCommand(flagCommand, "recursive", "r", false, "Enables recursive lookup inside the subfolders."),
	}
	_ = flagCommand.Parse(args)
	return flags
}

func ParseFlagsForCommandBuild(args []string) FlagsForCommandBuild {
	flagCommand := flag.NewFlagSet("command-build", flag.ExitOnError)

	flags := FlagsForCommandBuild{
		LogFlags:         defineLogFlags(flagCommand),
		Input:            defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the input point file/folder."),
		Output:           defineStringFlagCommand(flagCommand, "output", "o", "", "Specifies the output folder where to write the EPT datasets."),
		FolderProcessing: defineBoolFlagCommand(flagCommand, "folder", "f", false, "Enables processing of all point files from input folder. Input must be a folder if specified"),
		Recursive:        defineBoolFlagCommand(flagCommand, "recursive", "r", false, "Enables recursive lookup for point files inside the subfolders"),
		ZOffset:          defineFloat64FlagCommand(flagCommand, "zoffset", "z", 0, "Vertical offset to apply to points, in meters. Added to the configured offset."),
		GridCellMaxSize:  defineFloat64FlagCommand(flagCommand, "grid-max-size", "x", 0, "Max cell size in meters for the grid algorithm. 0 keeps the configured value."),
		GridCellMinSize:  defineFloat64FlagCommand(flagCommand, "grid-min-size", "n", 0, "Min cell size in meters for the grid algorithm. 0 keeps the configured value."),
		HierarchyStep:    defineIntFlagCommand(flagCommand, "hierarchy-step", "", -1, "Depth step between hierarchy files. Negative keeps the configured value."),
	}
	_ = flagCommand.Parse(args)
	return flags
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineIntFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineInt64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int64, usage string) *int64 {
	var output int64
	flagCommand.Int64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Int64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineFloat64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Float64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
