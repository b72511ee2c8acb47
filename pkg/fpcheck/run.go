package fpcheck

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/newtron-network/fpverify/pkg/device"
	"github.com/newtron-network/fpverify/pkg/util"
)

// Result is the outcome of a check that reached the assertion phase.
type Result struct {
	Device string
	Output string
	Counts Counts
}

// Run fetches the OSPF FP dump from dev and verifies it. Progress and the raw
// dump are written to w for operator visibility; w may be nil.
//
// An error from the device with no output is returned wrapped. Output that
// came back with an error, such as a non-zero exit status, is verified. A
// dump that fails a checkpoint returns the Result together with an
// *AssertionError.
func Run(ctx context.Context, name string, dev device.Executor, w io.Writer) (*Result, error) {
	if w == nil {
		w = io.Discard
	}
	log := util.WithCheck(name, CheckName)

	fmt.Fprintln(w, "Verify OSPF FPs are programmed in ASIC")
	output, err := dev.Exec(ctx, Command, device.ShellBash)
	if err != nil {
		// A dump printed before a non-zero exit is still verified.
		if ctx.Err() != nil || strings.TrimSpace(output) == "" {
			return nil, fmt.Errorf("%s: %s: %w", name, Command, err)
		}
		log.Warnf("command exited with error, verifying its output: %v", err)
	}
	fmt.Fprintln(w, output)

	counts, err := Verify(output, func(msg string) {
		fmt.Fprintln(w, msg)
	})
	log.Debugf("counts: %s", counts)

	result := &Result{Device: name, Output: output, Counts: counts}
	if err != nil {
		log.Warnf("check failed: %v", err)
		return result, err
	}
	log.Infof("OSPF FP entries verified")
	return result, nil
}
