package radiance

import (
	"context"
	"os/exec"
)

// CommandRunner executes one shell command line. The production runner
// spawns a shell; tests substitute a recorder so no Radiance install is
// needed.
type CommandRunner interface {
	Run(ctx context.Context, command string) error
}

// ShellRunner runs commands through the system shell, discarding the
// tool's stdout/stderr: rfluxmtx results are read from its output file,
// not from the pipe.
type ShellRunner struct{}

func (ShellRunner) Run(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

// ComputeViewFactors runs one rfluxmtx invocation. The tool's exit status
// is not inspected beyond "did it run": a missing output artifact is the
// failure signal consumed downstream.
func ComputeViewFactors(ctx context.Context, r CommandRunner, inv Invocation) error {
	command, err := inv.Command()
	if err != nil {
		return err
	}
	return r.Run(ctx, command)
}

// RunGrouped concatenates the invocations into one compound shell command
// and runs it as a unit.
func RunGrouped(ctx context.Context, r CommandRunner, invs []Invocation) error {
	commands := make([]string, 0, len(invs))
	for _, inv := range invs {
		command, err := inv.Command()
		if err != nil {
			return err
		}
		commands = append(commands, command)
	}
	if len(commands) == 0 {
		return nil
	}
	return r.Run(ctx, GroupCommands(commands))
}

// BuildOctree generates an octree from the given scene files.
func BuildOctree(ctx context.Context, r CommandRunner, radPaths []string, octreePath string) error {
	command, err := OconvCommand(radPaths, octreePath)
	if err != nil {
		return err
	}
	return r.Run(ctx, command)
}
