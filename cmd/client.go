package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/po/internal/chain"
	"github.com/marcus/po/internal/config"
	"github.com/marcus/po/internal/contracts"
	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/orgmodel"
	"github.com/marcus/po/internal/output"
	"github.com/marcus/po/internal/session"
)

const (
	envPrivateKey = "PO_PRIVATE_KEY"
	envPassphrase = "PO_KEYSTORE_PASSPHRASE"
)

// errNoSigner is returned by write commands when no key is configured.
var errNoSigner = errors.New("no signing key: set " + envPrivateKey + " or `po config set keystore <path>`")

// commandContext is cancelled on interrupt so a Ctrl+C during mining
// leaves the tracked write to the reconciler instead of killing it mid-call.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

// loadSigner returns the configured signer, or nil when none is set up.
// Keystores are unlocked with PO_KEYSTORE_PASSPHRASE or an interactive
// prompt.
func loadSigner(ctx context.Context) (*chain.KeySigner, error) {
	if hexKey := os.Getenv(envPrivateKey); hexKey != "" {
		return chain.FromHex(hexKey)
	}
	path := config.GetKeystore()
	if path == "" {
		return nil, nil
	}
	pass := os.Getenv(envPassphrase)
	if pass == "" {
		if !interactive() {
			return nil, fmt.Errorf("keystore %s is locked: set %s", path, envPassphrase)
		}
		input := huh.NewInput().
			Title("Keystore passphrase").
			Description(path).
			EchoMode(huh.EchoModePassword).
			Value(&pass)
		if err := huh.NewForm(huh.NewGroup(input)).WithTheme(huh.ThemeDracula()).RunWithContext(ctx); err != nil {
			return nil, fmt.Errorf("unlock keystore: %w", err)
		}
	}
	return chain.FromKeystore(path, pass)
}

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// confirmTx asks before every signature. Declining surfaces as a wallet
// rejection.
func confirmTx(ctx context.Context, p chain.Prompt) (bool, error) {
	if !interactive() {
		return false, &chain.RejectedError{Reason: "no terminal to confirm; rerun with --yes"}
	}
	to := "(contract creation)"
	if p.To != nil {
		to = p.To.Hex()
	}
	desc := fmt.Sprintf("to %s\nmethod %s (%d bytes)\ngas %d on chain %s", to, p.Selector, p.DataLen, p.Gas, p.ChainID)
	if p.Value != nil && p.Value.Sign() > 0 {
		desc += "\nvalue " + encoding.FormatTokenAmount(p.Value, 18) + " ETH"
	}
	ok := true
	field := huh.NewConfirm().
		Title("Sign transaction from " + output.ShortAddress(p.From.Hex()) + "?").
		Description(desc).
		Affirmative("Sign").
		Negative("Reject").
		Value(&ok)
	if err := huh.NewForm(huh.NewGroup(field)).WithTheme(huh.ThemeDracula()).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// openSession connects a session from config. With needSigner a missing
// key is an error; otherwise the session is read-only.
func openSession(ctx context.Context, needSigner bool) (*session.Session, error) {
	signer, err := loadSigner(ctx)
	if err != nil {
		return nil, err
	}
	if signer == nil && needSigner {
		return nil, errNoSigner
	}

	opts := session.OptionsFromConfig()
	opts.Notifier = output.NewToaster(nil, verboseFlag)
	opts.Logger = slog.Default()

	var s contracts.Signer
	if signer != nil {
		if !yesFlag {
			signer.Confirm = confirmTx
		}
		s = signer
	}
	return session.Open(ctx, opts, s)
}

// orgRef resolves --org, falling back to the configured default.
func orgRef() (string, error) {
	if orgFlag != "" {
		return orgFlag, nil
	}
	if def := config.GetDefaultOrg(); def != "" {
		return def, nil
	}
	return "", errors.New("no organization: pass --org or `po config set default_org <name>`")
}

// openOrg opens a session and loads the selected organization.
func openOrg(ctx context.Context, needSigner bool) (*session.Session, *orgmodel.View, error) {
	ref, err := orgRef()
	if err != nil {
		return nil, nil, err
	}
	s, err := openSession(ctx, needSigner)
	if err != nil {
		return nil, nil, err
	}
	v, err := s.LoadOrganization(ctx, ref)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, v, nil
}

// withOrg runs fn over a read-only session with --org loaded.
func withOrg(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session, v *orgmodel.View) error) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	s, v, err := openOrg(ctx, false)
	if err != nil {
		return fail(err)
	}
	defer s.Close()
	if err := fn(ctx, s, v); err != nil {
		return fail(err)
	}
	return nil
}
