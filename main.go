/*
 * This file is part of the Go Cesium Point Cloud Tiler distribution (https://github.com/mfbonfigli/gocesiumtiler).
 * Copyright (c) 2019 Massimo Federico Bonfigli - m.federico.bonfigli@gmail.com
 *
 * This program is free software; you can redistribute it and/or modify it
 * under the terms of the GNU Lesser General Public License Version 3 as
 * published by the Free Software Foundation;
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 *
 * This software also uses third party components. You can find information
 * on their credits and licensing in the file LICENSE-3RD-PARTIES.md that
 * you should have received togheter with the source code.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/glog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ecopia-map/pointcloud_streamer/internal/client"
	"github.com/ecopia-map/pointcloud_streamer/internal/config"
	"github.com/ecopia-map/pointcloud_streamer/internal/data"
	"github.com/ecopia-map/pointcloud_streamer/internal/ept"
	"github.com/ecopia-map/pointcloud_streamer/internal/scene"
	"github.com/ecopia-map/pointcloud_streamer/pkg"
	"github.com/ecopia-map/pointcloud_streamer/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/pointcloud_streamer/pkg/pointcloud"
	"github.com/ecopia-map/pointcloud_streamer/tools"
)

const VERSION = "0.4.0"

const logo = `
  +------------------------------------------------+
  |  pcstream                                      |
  |  Point cloud streaming for octree EPT datasets |
  +------------------------------------------------+
`

func main() {
	defer glog.Flush()

	flagsGlobal := tools.ParseFlagsGlobal()
	if *flagsGlobal.Help {
		showHelp()
		return
	}
	if *flagsGlobal.Version {
		printVersion()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		glog.Exitf("Please specify a subcommand [%s].", strings.Join(tools.Commands, "|"))
	}
	cmd, args := args[0], args[1:]

	opts, err := config.Load(*flagsGlobal.Config)
	if err != nil {
		glog.Exitf("Error reading configuration: %v", err)
	}
	glog.V(1).Infof("options %s", tools.FmtJSONString(opts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case tools.CommandOutputs:
		err = mainCommandOutputs(ctx, opts, args)
	case tools.CommandLoad:
		err = mainCommandLoad(ctx, opts, args)
	case tools.CommandPick:
		err = mainCommandPick(ctx, opts, args)
	case tools.CommandScan:
		err = mainCommandScan(args)
	case tools.CommandBuild:
		err = mainCommandBuild(ctx, opts, args)
	default:
		glog.Exitf("Unrecognized command [%q]. Command must be one of [%s]", cmd, strings.Join(tools.Commands, "|"))
	}
	if err != nil {
		glog.Flush()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCdfClient(ctx context.Context, opts *config.Options) (*client.CdfClient, error) {
	if opts.Cdf.Project == "" {
		return nil, errors.New("cdf.project is not configured, set it in pcstream.yaml or PCSTREAM_CDF__PROJECT")
	}
	return client.NewCdfClient(ctx, opts.Cdf.BaseURL, opts.Cdf.Project, opts.Cdf.Token, http.DefaultClient,
		client.WithSupportedVersions(opts.Cdf.SupportedVersions...)), nil
}

func parseFormat(value string) (data.Format, error) {
	format := data.ParseFormat(value)
	if format == "" {
		return "", errors.Errorf("unknown output format %q", value)
	}
	return format, nil
}

func mainCommandOutputs(ctx context.Context, opts *config.Options, args []string) error {
	flags := tools.ParseFlagsForCommandOutputs(args)
	tools.ApplyLogFlags(flags.LogFlags)

	format, err := parseFormat(*flags.Format)
	if err != nil {
		return err
	}
	c, err := newCdfClient(ctx, opts)
	if err != nil {
		return err
	}
	outputs, err := c.Resolver().GetOutputs(ctx, *flags.Model, *flags.Revision, format)
	if err != nil {
		return err
	}

	t := newTable()
	t.AppendHeader(table.Row{"Blob ID", "Format", "Version"})
	for _, o := range outputs {
		t.AppendRow(table.Row{o.BlobID, o.Format, o.Version})
	}
	t.Render()

	if latest, ok := outputs.FindMostRecentOutput(data.EptPointCloud.String(), opts.Cdf.SupportedVersions...); ok {
		fmt.Printf("Most recent point cloud output: blob %d, version %d\n", latest.BlobID, latest.Version)
	}
	return nil
}

// viewer is the part of pkg.Viewer the commands use, independent of the model identifier type.
type viewer interface {
	Node() *pointcloud.NodeWrapper
	HideClasses(codes []int) error
	Stream(ctx context.Context, frames int) (scene.RenderStats, error)
	Pick(ndc mgl64.Vec2) ([]pointcloud.Intersection, error)
	Close()
}

func openViewer(ctx context.Context, opts *config.Options, flags *tools.FlagsForCommandLoad) (viewer, error) {
	tools.ApplyLogFlags(flags.LogFlags)

	if *flags.PointBudget > 0 {
		opts.Render.PointBudget = *flags.PointBudget
	}
	if *flags.ColorType != "" {
		opts.Render.PointColorType = *flags.ColorType
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	hidden, err := tools.ParseIntList(*flags.Hide)
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(*flags.Format)
	if err != nil {
		return nil, err
	}

	var v viewer
	start := time.Now()
	if *flags.Local != "" {
		dir, err := filepath.Abs(*flags.Local)
		if err != nil {
			return nil, err
		}
		id := client.LocalModelIdentifier{Path: filepath.Base(dir), Format: format}
		tools.LogOutput("Loading", dir)
		localViewer, err := pkg.OpenViewer[client.LocalModelIdentifier](ctx, client.NewLocalClient(filepath.Dir(dir)), id, opts, *flags.Width, *flags.Height)
		if err != nil {
			return nil, err
		}
		go reportProgress(localViewer.Manager())
		v = localViewer
	} else {
		c, err := newCdfClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		id := client.CdfModelIdentifier{ModelID: *flags.Model, RevisionID: *flags.Revision, Format: format}
		tools.LogOutput("Loading", id)
		cdfViewer, err := pkg.OpenViewer[client.CdfModelIdentifier](ctx, c, id, opts, *flags.Width, *flags.Height)
		if err != nil {
			return nil, err
		}
		go reportProgress(cdfViewer.Manager())
		v = cdfViewer
	}

	if err := v.HideClasses(hidden); err != nil {
		v.Close()
		return nil, err
	}
	if _, err := v.Stream(ctx, *flags.Frames); err != nil {
		v.Close()
		return nil, err
	}
	tools.LogOutput("Streamed in", time.Since(start).Round(time.Millisecond))
	return v, nil
}

type progressSource interface {
	LoadingStateObserver() (<-chan pointcloud.LoadingState, func())
}

// reportProgress prints the loading state until the manager is closed.
func reportProgress(source progressSource) {
	states, _ := source.LoadingStateObserver()
	for s := range states {
		if s.IsLoading {
			tools.LogOutput(fmt.Sprintf("loading tiles %d/%d", s.ItemsLoaded, s.ItemsRequested))
		}
	}
}

func mainCommandLoad(ctx context.Context, opts *config.Options, args []string) error {
	flags := tools.ParseFlagsForCommandLoad(args)
	v, err := openViewer(ctx, opts, &flags)
	if err != nil {
		return err
	}
	defer v.Close()

	printNodeSummary(v.Node())
	return nil
}

func mainCommandPick(ctx context.Context, opts *config.Options, args []string) error {
	flags := tools.ParseFlagsForCommandPick(args)
	v, err := openViewer(ctx, opts, &flags.FlagsForCommandLoad)
	if err != nil {
		return err
	}
	defer v.Close()

	hits, err := v.Pick(mgl64.Vec2{*flags.X, *flags.Y})
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("(no points hit)")
		return nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"#", "Distance", "X", "Y", "Z", "Class", "Node"})
	for i, hit := range hits {
		p := hit.Object.Points()[hit.PointIndex]
		t.AppendRow(table.Row{
			i,
			fmt.Sprintf("%.3f", hit.Distance),
			fmt.Sprintf("%.3f", hit.Point.X()),
			fmt.Sprintf("%.3f", hit.Point.Y()),
			fmt.Sprintf("%.3f", hit.Point.Z()),
			pointcloud.ClassName(int(p.Classification)),
			hit.Object.Name(),
		})
	}
	t.Render()
	return nil
}

func printNodeSummary(node *pointcloud.NodeWrapper) {
	tree := node.Octree()
	box := node.GetBoundingBox()

	t := newTable()
	t.AppendRows([]table.Row{
		{"Name", tree.Name()},
		{"Points", humanize.Comma(tree.Metadata().Points)},
		{"Visible points", humanize.Comma(int64(node.VisiblePointCount()))},
		{"Visible nodes", fmt.Sprintf("%d / %d", len(tree.VisibleNodes()), tree.NumNodes())},
		{"Point budget", humanize.Comma(int64(node.PointBudget()))},
		{"Color", node.PointColorType()},
		{"Box min", formatVec(box.Min)},
		{"Box max", formatVec(box.Max)},
	})
	t.Render()

	classes := newTable()
	classes.AppendHeader(table.Row{"Code", "Class", "Visible"})
	for _, code := range node.GetClasses() {
		visible, _ := node.IsClassVisible(code)
		classes.AppendRow(table.Row{code, pointcloud.ClassName(code), visible})
	}
	classes.Render()
}

func formatVec(v mgl64.Vec3) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X(), v.Y(), v.Z())
}

func mainCommandScan(args []string) error {
	flags := tools.ParseFlagsForCommandScan(args)
	tools.ApplyLogFlags(flags.LogFlags)

	datasets, err := tools.NewStandardFileFinder().FindEptDatasets(*flags.Input, *flags.Recursive)
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		fmt.Println("(no EPT datasets found)")
		return nil
	}

	t := newTable()
	t.AppendHeader(table.Row{"Dataset", "Points", "Data type", "Dimensions", "Status"})
	for _, dir := range datasets {
		raw, err := os.ReadFile(filepath.Join(dir, ept.RootFileName))
		if err != nil {
			t.AppendRow(table.Row{dir, "", "", "", err.Error()})
			continue
		}
		m, err := ept.ParseMetadata(raw)
		if err != nil {
			t.AppendRow(table.Row{dir, "", "", "", err.Error()})
			continue
		}
		dims := lo.Map(m.Schema, func(d ept.Dimension, _ int) string { return d.Name })
		t.AppendRow(table.Row{dir, humanize.Comma(m.Points), m.DataType, strings.Join(dims, ","), "ok"})
	}
	t.Render()
	return nil
}

func mainCommandBuild(ctx context.Context, opts *config.Options, args []string) error {
	flags := tools.ParseFlagsForCommandBuild(args)
	tools.ApplyLogFlags(flags.LogFlags)

	build := opts.Build
	if *flags.Input != "" {
		build.Input = *flags.Input
	}
	if *flags.Output != "" {
		build.Output = *flags.Output
	}
	build.FolderProcessing = build.FolderProcessing || *flags.FolderProcessing
	build.Recursive = build.Recursive || *flags.Recursive
	build.ZOffset += *flags.ZOffset
	if *flags.GridCellMaxSize > 0 {
		build.CellMaxSize = *flags.GridCellMaxSize
	}
	if *flags.GridCellMinSize > 0 {
		build.CellMinSize = *flags.GridCellMinSize
	}
	if *flags.HierarchyStep >= 0 {
		build.HierarchyStep = *flags.HierarchyStep
	}

	if msg, ok := validateOptionsForCommandBuild(&build); !ok {
		return errors.New("error parsing input parameters: " + msg)
	}

	printLogo()
	datasets, err := pkg.NewBuilder(tools.NewStandardFileFinder(), std_algorithm_manager.NewAlgorithmManager(&build)).RunBuilder(ctx, &build)
	if err != nil {
		return err
	}
	tools.LogOutput("Conversion Completed,", strconv.Itoa(len(datasets)), "datasets written to", build.Output)
	return nil
}

// Validates the build options checking that the input exists and an output is given
func validateOptionsForCommandBuild(opts *config.BuildOptions) (string, bool) {
	if !tools.PathExists(opts.Input) {
		return "Input file/folder not found", false
	}
	if opts.FolderProcessing && !tools.IsDirectory(opts.Input) {
		return "Input must be a folder when folder processing is enabled", false
	}
	if opts.Output == "" {
		return "Output folder not specified", false
	}
	if opts.CellMaxSize > 0 && opts.CellMinSize > opts.CellMaxSize {
		return "grid-max-size parameter cannot be lower than grid-min-size parameter", false
	}
	return "", true
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	return t
}

func printLogo() {
	fmt.Print(logo, "\n")
}

func showHelp() {
	printLogo()
	fmt.Println("***")
	fmt.Println("pcstream streams octree point clouds under a point budget, picks points and builds EPT datasets")
	printVersion()
	fmt.Println("***")
	fmt.Println("")
	fmt.Println("Commands: " + strings.Join(tools.Commands, ", "))
	fmt.Println("Run pcstream <command> -h for the flags of a command.")
	fmt.Println("")
	fmt.Println("Command line flags: ")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
