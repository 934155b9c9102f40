package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/viant/afs"
	"github.com/viant/pager"
	"github.com/viant/pager/model/ipc"
	"github.com/viant/pager/model/task"
	"github.com/viant/pager/service/layout"
	"gopkg.in/alecthomas/kingpin.v2"
)

// Exit codes.
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	ctx := context.Background()
	bhv := Main(ctx, os.Args, os.Stdout, os.Stderr)
	err := bhv.action()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
	}
	os.Exit(exitCode(err))
}

// behavior holds the parse result so tests can inspect it before running.
type behavior struct {
	parsedArgs interface{}
	action     func() error
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	}
	return exitFatal
}

func Main(ctx context.Context, args []string, stdout, stderr io.Writer) behavior {
	app := kingpin.New("pager", "Boot-time task and address-space manager.")
	app.HelpFlag.Short('h')
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	bhvs := map[string]behavior{}
	{
		cmdBoot := app.Command("boot", "Load images, boot tasks and serve the coordinator's task data query.")
		argsBoot := struct {
			ConfigURL string
			ImagesURL string
		}{}
		cmdBoot.Flag("config", "YAML config URL.").
			Short('c').
			StringVar(&argsBoot.ConfigURL)
		cmdBoot.Flag("images", "Directory of boot image files; overrides the config.").
			StringVar(&argsBoot.ImagesURL)
		bhvs[cmdBoot.FullCommand()] = behavior{&argsBoot, func() error {
			return BootCmd(ctx, argsBoot.ConfigURL, argsBoot.ImagesURL, stdout, stderr)
		}}
	}
	{
		cmdLayout := app.Command("layout", "Print the address space layout of an image.")
		argsLayout := struct {
			Length uint64
		}{}
		cmdLayout.Flag("length", "Image length in bytes.").
			Required().
			Uint64Var(&argsLayout.Length)
		bhvs[cmdLayout.FullCommand()] = behavior{&argsLayout, func() error {
			return LayoutCmd(argsLayout.Length, stdout)
		}}
	}

	parsedCmdStr, err := app.Parse(args[1:])
	if err != nil {
		return behavior{
			parsedArgs: err,
			action: func() error {
				return fmt.Errorf("%w: error parsing args: %s", errUsage, err)
			},
		}
	}
	if bhv, ok := bhvs[parsedCmdStr]; ok {
		return bhv
	}
	panic("unreachable, cli parser must error on unknown commands")
}

// BootCmd runs the whole simulation and prints the exported task table.
func BootCmd(ctx context.Context, configURL, imagesURL string, stdout, stderr io.Writer) error {
	fs := afs.New()
	config := pager.DefaultConfig()
	if configURL != "" {
		var err error
		if config, err = pager.LoadConfig(ctx, fs, configURL); err != nil {
			return err
		}
	}
	if imagesURL != "" {
		config.Boot.ImagesURL = imagesURL
		config.Boot.Images = nil
	}
	srv, err := pager.New(pager.WithConfig(config), pager.WithFS(fs), pager.WithLogWriter(stderr))
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close(ctx) }()
	if err = srv.Boot(ctx); err != nil {
		return err
	}

	coordinator := config.Boot.CoordinatorID
	if srv.Descriptor().Lookup(config.Boot.CoordinatorName) == nil {
		return fmt.Errorf("no boot image named %q for the coordinator", config.Boot.CoordinatorName)
	}
	if err = srv.Deliver(ctx, coordinator, ipc.TagWait); err != nil {
		return err
	}
	if err = srv.Deliver(ctx, coordinator, ipc.TagTaskData); err != nil {
		return err
	}
	if err = srv.Serve(ctx, 2); err != nil {
		return err
	}
	records, err := srv.TaskData(coordinator)
	if err != nil {
		return err
	}
	return printTasks(stdout, srv.Registry(), records)
}

func printTasks(w io.Writer, registry *task.Registry, records []ipc.TaskData) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TID\tSPID\tNAME\tBUFFER\tTEXT\tSTACK")
	for _, record := range records {
		tcb, ok := registry.Find(record.TaskID)
		if !ok {
			return fmt.Errorf("exported task %d is not registered", record.TaskID)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t0x%x\t0x%x-0x%x\t0x%x-0x%x\n", record.TaskID, tcb.SpaceID, tcb.Name,
			uint64(record.BufferAddress), uint64(tcb.TextStart), uint64(tcb.TextEnd), uint64(tcb.StackStart), uint64(tcb.StackEnd))
	}
	return tw.Flush()
}

// LayoutCmd prints the regions an image of length bytes would get.
func LayoutCmd(length uint64, stdout io.Writer) error {
	engine, err := layout.New(layout.DefaultConfig())
	if err != nil {
		return err
	}
	plan, err := engine.Compute(length)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tSTART\tEND")
	for _, region := range []struct {
		name       string
		start, end uint64
	}{
		{"text", uint64(plan.TextStart), uint64(plan.TextEnd)},
		{"data", uint64(plan.DataStart), uint64(plan.DataEnd)},
		{"stack", uint64(plan.StackStart), uint64(plan.StackEnd)},
		{"args", uint64(plan.ArgsStart), uint64(plan.ArgsEnd)},
		{"env", uint64(plan.EnvStart), uint64(plan.EnvEnd)},
	} {
		fmt.Fprintf(tw, "%s\t0x%x\t0x%x\n", region.name, region.start, region.end)
	}
	fmt.Fprintf(tw, "pc\t0x%x\t\nsp\t0x%x\t\n", uint64(plan.InitialPC()), uint64(plan.InitialSP()))
	return tw.Flush()
}
