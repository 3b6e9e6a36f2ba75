// Command cursivec builds a handful of small programs directly as
// internal/ast trees (no frontend exists yet) and runs each through
// internal/interp, reporting the exit code or panic code each one produces.
// It exists to exercise the middle end end to end the way spec.md §8's
// worked scenarios describe, grounded on the teacher's own thin
// "construct subsystems, run, report" cmd/inos-node/main.go shape.
package main

import (
	"fmt"
	"os"

	"github.com/cursivelang/corec/internal/config"
	"github.com/cursivelang/corec/internal/diag"
	"github.com/cursivelang/corec/internal/interp"
	"github.com/cursivelang/corec/internal/runtime"
)

var logger = diag.DefaultLogger("cursivec")

// runResult is everything a scenario's afterRun hook might want to inspect
// once Run has returned.
type runResult struct {
	interp *interp.Interp
}

func itoa(n int64) string { return fmt.Sprintf("%d", n) }

func main() {
	scenarios := allScenarios()
	failures := 0

	for _, sc := range scenarios {
		rt := runtime.New(config.Default())
		in := interp.New(sc.prog, nil, rt)

		exit, p := in.Run()
		rt.Close()

		ok := true
		switch {
		case sc.wantsPanic:
			if p == nil {
				ok = false
				logger.Error("expected a panic but none was raised", diag.String("scenario", sc.name), diag.String("want", sc.wantPanic.String()))
			} else if p.Code != sc.wantPanic {
				ok = false
				logger.Error("wrong panic code", diag.String("scenario", sc.name), diag.String("want", sc.wantPanic.String()), diag.String("got", p.Code.String()))
			} else {
				logger.Info("panicked as expected", diag.String("scenario", sc.name), diag.String("code", p.Code.String()))
			}
		default:
			if p != nil {
				ok = false
				logger.Error("unexpected panic", diag.String("scenario", sc.name), diag.String("code", p.Code.String()), diag.String("message", p.Message))
			} else if exit != sc.wantExit {
				ok = false
				logger.Error("wrong exit code", diag.String("scenario", sc.name), diag.Int("want", int(sc.wantExit)), diag.Int("got", int(exit)))
			} else {
				logger.Info("exited as expected", diag.String("scenario", sc.name), diag.Int("code", int(exit)))
			}
		}

		if sc.afterRun != nil {
			logger.Info(sc.afterRun(&runResult{interp: in}), diag.String("scenario", sc.name))
		}

		if !ok {
			failures++
		}
	}

	fmt.Printf("%d/%d scenarios passed\n", len(scenarios)-failures, len(scenarios))
	if failures > 0 {
		os.Exit(1)
	}
	os.Exit(0)
}
