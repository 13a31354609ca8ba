package main

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "paper-scraper dev\n", out)
}

func TestConferencesCommand(t *testing.T) {
	out, err := execute(t, "conferences")
	require.NoError(t, err)
	assert.Contains(t, out, "CONFERENCE")
	assert.Regexp(t, `ICLR\s+openreview\s+2017-\d{4}\s+needs OpenReview credentials`, out)
	assert.Regexp(t, `AISTATS\s+web\s+.*poster-only`, out)
	assert.Regexp(t, `AAMAS\s+pdf\s+.*needs --pdf-dir`, out)
}

func TestScrapeRequiresPairs(t *testing.T) {
	_, err := execute(t, "scrape", "--years", "2024")
	assert.ErrorContains(t, err, "provide one or more conferences")
}

func TestWatchSignalsStopsThenAborts(t *testing.T) {
	ctx, abort, release := watchSignals(context.Background(), zerolog.Nop())
	defer release()

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)

	require.NoError(t, self.Signal(os.Interrupt))
	require.Eventually(t, func() bool { return ctx.Err() != nil }, time.Second, 5*time.Millisecond)
	select {
	case <-abort:
		t.Fatal("first interrupt must not abort")
	default:
	}

	require.NoError(t, self.Signal(os.Interrupt))
	require.Eventually(t, func() bool {
		select {
		case <-abort:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestWatchSignalsRelease(t *testing.T) {
	ctx, abort, release := watchSignals(context.Background(), zerolog.Nop())
	release()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	select {
	case <-abort:
		t.Fatal("release must not abort")
	default:
	}
}
