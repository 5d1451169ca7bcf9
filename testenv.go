package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"voxplaces/audio"
	"voxplaces/beep"
	"voxplaces/encoder"
	"voxplaces/log"
	"voxplaces/session"
)

// runTestMode replays a WAV file as the microphone and drives the session from
// stdin, one command per line.
func runTestMode(wavPath string, tr session.Transport, cfg encoder.Config, timeout time.Duration) {
	beep.Disable()

	fakeCtx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}
	if os.Getenv("VOX_TEST_DENY_MIC") != "" {
		fakeCtx.Denied = true
	}

	out := &syncWriter{w: os.Stdout}
	rec := newMicRecorder(fakeCtx, nil)
	ctrl := session.New(rec, tr, session.Options{
		Encoding:      cfg,
		UploadTimeout: timeout,
		OnChange:      printObserver(out),
	})

	code := runScript(ctrl, os.Stdin, out)
	ctrl.Close(context.Background())
	log.SessionEnd(int(searches.Load()))
	log.Close()
	os.Exit(code)
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printObserver reports each transition as a PHASE line followed by the
// outcome once a search settles.
func printObserver(w io.Writer) func(session.Snapshot) {
	return func(s session.Snapshot) {
		if s.Phase == session.ResultsReady {
			searches.Add(1)
		}
		line := "PHASE " + s.Phase.String()
		if s.Notice != "" {
			line += " notice=" + strconv.Quote(s.Notice)
		}
		if s.LastError != nil {
			line += " kind=" + s.LastError.Kind.String()
		}
		if s.Phase == session.ResultsReady {
			line += " results=" + strconv.Itoa(len(s.Results))
		}
		fmt.Fprintln(w, line)
	}
}

// runScript executes commands until QUIT or EOF and returns an exit code.
//
//	TOGGLE | START | STOP | RESET    session operations
//	WAIT                             block until the upload settles
//	SLEEP <ms>                       pause
//	STATE                            print the current snapshot
//	QUIT                             stop
func runScript(ctrl *session.Controller, r io.Reader, w io.Writer) int {
	ctx := context.Background()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" || strings.HasPrefix(cmd, "#") {
			continue
		}
		var err error
		switch cmd {
		case "TOGGLE":
			err = ctrl.Toggle(ctx)
		case "START":
			err = ctrl.Start(ctx)
		case "STOP":
			err = ctrl.Stop(ctx)
		case "RESET":
			err = ctrl.Reset()
		case "WAIT":
			err = ctrl.Wait(ctx)
		case "STATE":
			s := ctrl.Snapshot()
			fmt.Fprintf(w, "STATE %s\n", s.Phase)
			if s.Phase == session.ResultsReady || s.Phase == session.Failed {
				printOutcome(w, s)
			}
		case "QUIT":
			return 0
		default:
			if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
				if n, convErr := strconv.Atoi(ms); convErr == nil {
					time.Sleep(time.Duration(n) * time.Millisecond)
					continue
				}
			}
			fmt.Fprintf(w, "ERR unknown command %q\n", cmd)
			continue
		}
		if err != nil {
			fmt.Fprintf(w, "ERR %s: %v\n", strings.ToLower(cmd), err)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(w, "ERR reading commands: %v\n", err)
		return 1
	}
	return 0
}
