package publish

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// RsyncSink ships the document to a remote host with rsync over ssh. The
// body is staged in a scratch file that is reused across publications.
// Publications older than skipOlderThan are dropped rather than shipped,
// so a backlog after a stall never floods the remote with stale documents.
type RsyncSink struct {
	server        string
	user          string
	port          int
	sshOptions    string
	remotePath    string
	stagePath     string
	timeout       time.Duration
	skipOlderThan time.Duration
}

// RsyncOptions configures an RsyncSink.
type RsyncOptions struct {
	Server        string
	User          string
	Port          int
	SSHOptions    string
	RemotePath    string
	Timeout       time.Duration
	SkipOlderThan time.Duration
}

// NewRsyncSink builds an RsyncSink. stageDir holds the local scratch copy.
func NewRsyncSink(opts RsyncOptions, stageDir, name string) *RsyncSink {
	return &RsyncSink{
		server:        opts.Server,
		user:          opts.User,
		port:          opts.Port,
		sshOptions:    opts.SSHOptions,
		remotePath:    opts.RemotePath,
		stagePath:     filepath.Join(stageDir, name+".rsync"),
		timeout:       opts.Timeout,
		skipOlderThan: opts.SkipOlderThan,
	}
}

// Name implements Sink.
func (s *RsyncSink) Name() string { return "rsync" }

// Publish implements Sink.
func (s *RsyncSink) Publish(ctx context.Context, pub Publication) error {
	if s.skipOlderThan > 0 && time.Since(pub.Timestamp) > s.skipOlderThan {
		return ErrStale
	}

	if err := os.WriteFile(s.stagePath, pub.Body, 0o644); err != nil {
		return fmt.Errorf("stage document: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ssh := fmt.Sprintf("ssh -p %d", s.port)
	if s.sshOptions != "" {
		ssh += " " + s.sshOptions
	}

	dest := s.server + ":" + s.remotePath
	if s.user != "" {
		dest = s.user + "@" + dest
	}

	cmd := exec.CommandContext(ctx, "rsync", "--archive", "--compress", "-e", ssh, s.stagePath, dest)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("rsync to %s: %w: %s", s.server, err, strings.TrimSpace(string(out)))
	}
	return nil
}
