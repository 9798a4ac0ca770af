// Package main generates trajectories from request files.
package main

import (
	"context"
	"fmt"

	"go.viam.com/rdk/logging"
	"go.viam.com/utils"

	"trajgen"
)

func main() {
	utils.ContextualMain(mainWithArgs, logging.NewLogger("trajgen-cli"))
}

// Arguments for the command.
type Arguments struct {
	Config  string `flag:"config,required,usage=planning context config file"`
	Output  string `flag:"output,usage=write the generated trajectory as JSON to this file"`
	Request string `flag:"0,required,usage=motion request file"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, err := trajgen.LoadConfig(argsParsed.Config)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	registry := trajgen.NewPlanningContextRegistry()
	pc, err := registry.GetContext(cfg, logger)
	if err != nil {
		return err
	}
	defer registry.ReleaseContext(cfg)

	requests, err := trajgen.LoadRequestFile(argsParsed.Request)
	if err != nil {
		return err
	}
	items, err := requests.SequenceItems()
	if err != nil {
		return err
	}

	traj, err := generate(ctx, pc, items, logger)
	if err != nil {
		logger.Errorf("generation failed with %s (%s)", trajgen.CodeOf(err), trajgen.KindOf(err))
		return err
	}

	if err := printSummary(pc, traj, logger); err != nil {
		return err
	}

	if argsParsed.Output != "" {
		if err := trajgen.SaveTrajectoryToFile(argsParsed.Output, traj); err != nil {
			return err
		}
		logger.Infof("trajectory written to %s", argsParsed.Output)
	}
	return nil
}

// generate runs a single request directly and anything longer as a sequence.
func generate(ctx context.Context, pc *trajgen.PlanningContext, items []trajgen.SequenceItem, logger logging.Logger) (*trajgen.RobotTrajectory, error) {
	if len(items) == 1 {
		g, err := pc.NewGenerator(items[0].Motion)
		if err != nil {
			return nil, err
		}
		resp, err := g.Generate(ctx, &items[0].Request)
		if err != nil {
			return nil, err
		}
		logger.Infof("%s planned in %v", items[0].Motion, resp.PlanningTime)
		return resp.Trajectory, nil
	}

	seq, err := pc.NewSequence()
	if err != nil {
		return nil, err
	}
	return seq.Generate(ctx, items)
}

func printSummary(pc *trajgen.PlanningContext, traj *trajgen.RobotTrajectory, logger logging.Logger) error {
	logger.Infof("trajectory for group %s: %d points, duration %v", traj.Group, traj.Len(), traj.Duration())
	if traj.Empty() {
		return nil
	}

	link, err := pc.Robot.GroupTipLink(traj.Group)
	if err != nil {
		return err
	}
	end, err := pc.Robot.ComputeLinkFK(link, traj.PositionMap(traj.Len()-1))
	if err != nil {
		return err
	}
	encoded, err := trajgen.EncodePose(end)
	if err != nil {
		return err
	}
	fmt.Printf("end pose of %s: %s\n", link, encoded)
	return nil
}
