package cli

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/sigweihq/traceledger/pkg/backendclient"
	"github.com/sigweihq/traceledger/pkg/chains"
	"github.com/sigweihq/traceledger/pkg/chains/evm"
	"github.com/sigweihq/traceledger/pkg/content"
	"github.com/sigweihq/traceledger/pkg/contract"
	"github.com/sigweihq/traceledger/pkg/ledger"
	"github.com/sigweihq/traceledger/pkg/types"
	"github.com/sigweihq/traceledger/pkg/wallet"
)

// env holds the collaborators a command runs with
type env struct {
	cfg      Config
	logger   *slog.Logger
	registry *chains.Registry
	backend  *backendclient.Client
	gateway  *content.Gateway

	// set by newLedgerEnv
	wallet    *wallet.KeyWallet
	providers *evm.ProviderManager
	client    *ledger.Client

	out    io.Writer
	errOut io.Writer
}

func newEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(logLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	registry := chains.NewDefaultRegistry()
	if len(cfg.Chain.RPC) > 0 {
		if err := evm.InitChainsWithEndpoints(registry, logger, map[int64][]string{cfg.Chain.ID: cfg.Chain.RPC}); err != nil {
			return nil, fmt.Errorf("configuring endpoints: %w", err)
		}
	}

	backend := backendclient.New(cfg.Backend.URL, backendclient.WithLogger(logger))
	if token, err := readToken(cfg.Backend.TokenFile); err != nil {
		logger.Warn("could not read session token", "path", cfg.Backend.TokenFile, "error", err)
	} else if token != "" {
		backend.Auth.SetToken(token)
	}

	var pinOpts []content.Option
	if cfg.Content.PinToken != "" {
		pinOpts = append(pinOpts, content.WithPinning(cfg.Content.PinURL, cfg.Content.PinToken))
	}
	gateway, err := content.NewGateway(cfg.Content.Gateway, append(pinOpts, content.WithLogger(logger))...)
	if err != nil {
		return nil, fmt.Errorf("configuring content gateway: %w", err)
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		backend:  backend,
		gateway:  gateway,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
	}, nil
}

// newLedgerEnv is newEnv plus the wallet, providers and ledger client
func newLedgerEnv(cmd *cobra.Command) (*env, error) {
	e, err := newEnv(cmd)
	if err != nil {
		return nil, err
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	pmOpts := []evm.ProviderManagerOption{evm.WithDefaultChainID(e.cfg.Chain.ID)}
	clientOpts := []ledger.Option{
		ledger.WithContent(e.gateway),
		ledger.WithNotifier(&printNotifier{w: e.errOut}),
		ledger.WithLogger(e.logger),
	}

	if e.cfg.Wallet.HasKey() {
		w, err := e.openWallet(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		e.wallet = w
		pmOpts = append(pmOpts, evm.WithInjectedProvider(w))
		clientOpts = append(clientOpts, ledger.WithWallet(w))
	}

	if e.backend.Auth.IsAuthenticated() {
		clientOpts = append(clientOpts, ledger.WithVerifier(e.backend.Auth))
	} else {
		e.logger.Warn("not logged in to the backend, wallet verification is skipped")
	}

	e.providers = evm.NewProviderManager(e.registry, e.logger, pmOpts...)
	client, err := ledger.NewClient(e.cfg.ledgerConfig(), e.providers, clientOpts...)
	if err != nil {
		return nil, err
	}
	e.client = client
	return e, nil
}

func (e *env) openWallet(in io.Reader) (*wallet.KeyWallet, error) {
	key, err := e.loadKey()
	if err != nil {
		return nil, fmt.Errorf("loading wallet key: %w", err)
	}

	endpoints := e.cfg.endpoints()
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no RPC endpoint for chain %d, set --rpc", e.cfg.Chain.ID)
	}

	opts := []wallet.KeyWalletOption{wallet.WithLogger(e.logger)}
	if !e.cfg.Wallet.AutoApprove {
		opts = append(opts, wallet.WithApproval(promptApproval(in, e.errOut)))
	}
	return wallet.NewKeyWallet(endpoints[0], e.cfg.Chain.ID, []*ecdsa.PrivateKey{key}, opts...)
}

func (e *env) loadKey() (*ecdsa.PrivateKey, error) {
	w := e.cfg.Wallet
	switch {
	case w.PrivateKey != "":
		return wallet.ParsePrivateKey(w.PrivateKey)
	case w.KeyFile != "":
		return wallet.LoadPrivateKey(w.KeyFile)
	case w.Keystore != "":
		return wallet.LoadPrivateKeyFromKeystore(w.Keystore, w.Password)
	default:
		return nil, wallet.ErrNoWallet
	}
}

// connect runs the connection sequence the write commands need
func (e *env) connect(ctx context.Context) (types.WalletSession, error) {
	sess, err := e.client.Connect(ctx)
	if err != nil {
		return sess, err
	}
	e.logger.Debug("connected", "address", sess.Address)
	return sess, nil
}

func (e *env) Close() {
	if e.wallet != nil {
		e.wallet.Close()
	}
}

// promptApproval confirms transactions on the terminal. Account access is
// granted without asking since the key was configured by the same user.
func promptApproval(in io.Reader, out io.Writer) wallet.ApproveFunc {
	reader := bufio.NewReader(in)
	parsed := lo.Must(contract.ParseABI())

	return func(ctx context.Context, req wallet.Request) error {
		if req.Method != wallet.MethodSendTransaction {
			return nil
		}

		method := "transaction"
		if len(req.Data) >= 4 {
			if m, err := parsed.MethodById(req.Data[:4]); err == nil {
				method = m.Name
			}
		}
		to := "contract creation"
		if req.To != nil {
			to = req.To.Hex()
		}
		fmt.Fprintf(out, "Sign %s to %s from %s? [y/N] ", method, to, req.From.Hex())

		answer, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return nil
		default:
			return errors.New("user rejected the request")
		}
	}
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

func readToken(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// printNotifier writes notifications as they arrive
type printNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printNotifier) Notify(n ledger.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s\n", n.Level, n.Message)
}
