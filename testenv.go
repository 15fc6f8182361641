package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"voxscribe/audio"
	"voxscribe/beep"
	"voxscribe/log"
	"voxscribe/session"
	"voxscribe/studio"
)

// runTestMode drives a studio from stdin with a WAV file standing in for the
// microphone. Commands: START, STOP, DISCARD, WAIT, LIST, COPY, SLEEP <ms>,
// QUIT. STOP returns immediately; WAIT blocks until the last STOP finished.
func runTestMode(ctx context.Context, a *app, wavPath string) int {
	beep.Disable()

	fake, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}

	st, err := a.newStudio(fake, nil, studio.NopSink{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer st.Close()

	return driveStudio(ctx, st, os.Stdin, os.Stdout)
}

func driveStudio(ctx context.Context, st *studio.Studio, in io.Reader, out io.Writer) int {
	var pending chan struct{}
	wait := func() {
		if pending != nil {
			<-pending
			pending = nil
		}
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "START":
			if err := st.Start(ctx); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case cmd == "STOP":
			wait()
			done := make(chan struct{})
			pending = done
			go func() {
				defer close(done)
				sess, err := st.Stop(ctx)
				switch {
				case err != nil:
					fmt.Fprintf(out, "error: %v\n", err)
				case sess == nil:
					fmt.Fprintln(out, "no speech")
				default:
					fmt.Fprintf(out, "saved %s %q\n", sess.ID, sess.FullText)
				}
			}()
		case cmd == "DISCARD":
			if err := st.Discard(); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case cmd == "WAIT":
			wait()
		case cmd == "LIST":
			wait()
			for _, s := range st.Sessions() {
				fmt.Fprintf(out, "%s\t%s\t%s\n", s.ID, session.FormatDuration(s.TotalDurationMs), s.FullText)
			}
		case cmd == "COPY":
			if err := st.CopyActive(); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case cmd == "QUIT":
			wait()
			log.SessionEnd(len(st.Sessions()))
			return 0
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		}
	}
	wait()
	log.SessionEnd(len(st.Sessions()))
	return 0
}
