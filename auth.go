package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/llehouerou/scrubber/internal/errmsg"
	"github.com/llehouerou/scrubber/internal/lastfm"
	"github.com/llehouerou/scrubber/internal/state"
)

// Auth runs the desktop browser flow and stores the resulting session.
func (r *Runner) Auth(ctx context.Context, _ *cli.Command) error {
	if !r.cfg.HasLastfmConfig() {
		return fmt.Errorf("lastfm api_key and api_secret are not configured")
	}

	stateMgr, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}
	defer stateMgr.Close()

	client := lastfm.New(r.cfg.Lastfm.APIKey, r.cfg.Lastfm.APISecret)

	username, sessionKey, err := lastfm.Authenticate(ctx, client, func(url string) {
		r.writePlainln("open this URL in your browser to authorize:")
		r.writePlainln("  %s", url)
		r.writePlainln("waiting for authorization...")
	})
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpAuthComplete, err))
	}

	if err := stateMgr.SaveSession(username, sessionKey); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpSessionSave, err))
	}

	r.writePlainln("authenticated as %s", username)
	return nil
}

// AuthStatus reports the stored session and probes whether it is still
// accepted by the service.
func (r *Runner) AuthStatus(ctx context.Context, _ *cli.Command) error {
	stateMgr, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}
	defer stateMgr.Close()

	sess, err := stateMgr.GetSession()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpSessionLoad, err))
	}
	if sess == nil {
		r.writePlainln("no stored session, run 'scrubber auth'")
		return nil
	}

	r.writePlainln("session for %s, linked %s", sess.Username, sess.LinkedAt.Format("2006-01-02"))

	if !r.cfg.HasLastfmConfig() {
		r.writePlainln("api credentials missing, cannot validate")
		return nil
	}
	client := lastfm.New(r.cfg.Lastfm.APIKey, r.cfg.Lastfm.APISecret)
	client.SetSession(sess.Username, sess.SessionKey)
	if client.ValidateSession(ctx) {
		r.writePlainln("session is valid")
	} else {
		r.writePlainln("session is no longer valid, run 'scrubber auth'")
	}
	return nil
}

// AuthLogout discards the stored session.
func (r *Runner) AuthLogout(_ context.Context, _ *cli.Command) error {
	stateMgr, err := state.Open()
	if err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpInitialize, err))
	}
	defer stateMgr.Close()

	if err := stateMgr.DeleteSession(); err != nil {
		return fmt.Errorf("%s", errmsg.Format(errmsg.OpSessionClear, err))
	}
	r.writePlainln("session cleared")
	return nil
}
