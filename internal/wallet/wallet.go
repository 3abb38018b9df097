// internal/wallet/wallet.go
//
// Package wallet manages the session with the local signing agent: connect,
// disconnect, account switching, and the forced reset on out-of-band
// account/network changes. A changed identity invalidates every cached room,
// so the provider owns the purge hook into the mirror.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/liarspoker/internal/alert"
)

// ErrAgentUnavailable means no signing agent is present. Fatal to the flow;
// recoverable only by the user installing one.
var ErrAgentUnavailable = errors.New("no signing agent available")

// ErrWrongNetwork means the agent resolved a chain other than the required
// one. Connect initiates a switch request but does not block on it; the
// session stays disconnected until a retry observes the right chain.
var ErrWrongNetwork = errors.New("wrong network")

// ChainSpec describes the required chain for AddOrSwitchChain requests.
type ChainSpec struct {
	ChainID  string `json:"chainId"`
	Name     string `json:"chainName"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	RPCURL   string `json:"rpcUrl"`
}

// NotificationKind tags an out-of-band agent notification.
type NotificationKind string

const (
	AccountsChanged NotificationKind = "accountsChanged"
	ChainChanged    NotificationKind = "chainChanged"
)

// Notification is an unsolicited account/network change pushed by the agent.
type Notification struct {
	Kind NotificationKind
}

// Agent is the signing agent (wallet) surface. Implementations bridge to
// whatever the host environment provides.
type Agent interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (string, error)
	Balance(ctx context.Context, account string) (uint64, error)
	AddOrSwitchChain(ctx context.Context, spec ChainSpec) error

	// Notifications delivers out-of-band accountsChanged/chainChanged
	// signals. The channel is owned by the agent and closed on shutdown.
	Notifications() <-chan Notification
}

// Session is the client's identity state. Mutated only by the Provider.
type Session struct {
	Account   string `json:"account"`
	ChainID   string `json:"chainId"`
	Connected bool   `json:"connected"`
}

// Step enumerates onboarding progress for the UI collaborator.
type Step int

const (
	StepInstallAgent Step = iota // no signing agent present
	StepConnect                  // agent present, no account authorized
	StepSwitchChain              // wrong network
	StepFund                     // balance below the playable minimum
	StepReady
)

// MinPlayableBalance is the smallest balance (base units) the onboarding
// probe considers sufficient to play.
const MinPlayableBalance uint64 = 1_000_000

// Provider owns the Session and the connect/disconnect/switch operations.
type Provider struct {
	mu      sync.Mutex
	session Session

	agent  Agent
	spec   ChainSpec
	alerts *alert.Channel
	purge  func() // drops all identity-scoped caches
	log    *logrus.Logger
}

// NewProvider creates a disconnected provider. agent may be nil when no
// signing agent is present; Connect then fails with ErrAgentUnavailable.
// purge is invoked whenever the identity becomes invalid.
func NewProvider(agent Agent, spec ChainSpec, alerts *alert.Channel, purge func(), log *logrus.Logger) *Provider {
	if purge == nil {
		purge = func() {}
	}
	return &Provider{
		agent:  agent,
		spec:   spec,
		alerts: alerts,
		purge:  purge,
		log:    log,
	}
}

// Session returns a snapshot of the current session.
func (p *Provider) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// Account returns the connected account, or "".
func (p *Provider) Account() string {
	return p.Session().Account
}

// Connect establishes the session: resolve accounts, verify the network,
// transition to connected. On a chain mismatch it reports the condition,
// fires a non-blocking switch request, and leaves the session disconnected.
func (p *Provider) Connect(ctx context.Context) error {
	if p.agent == nil {
		p.alerts.Error("Please install a wallet!")
		return ErrAgentUnavailable
	}

	accounts, err := p.agent.RequestAccounts(ctx)
	if err != nil {
		p.alerts.Error("Error connecting wallet. Please try again.")
		return fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		p.alerts.Error("Error connecting wallet. Please try again.")
		return fmt.Errorf("request accounts: %w", ErrAgentUnavailable)
	}
	account := accounts[0]

	chainID, err := p.agent.ChainID(ctx)
	if err != nil {
		p.alerts.Error("Error connecting wallet. Please try again.")
		return fmt.Errorf("chain id: %w", err)
	}

	if chainID != p.spec.ChainID {
		p.alerts.Info(fmt.Sprintf("Please switch to the %s network", p.spec.Name))
		// Initiate the switch but do not block the connect on its outcome.
		go func() {
			if err := p.agent.AddOrSwitchChain(context.Background(), p.spec); err != nil {
				p.log.WithField("error", err).Warn("network switch request failed")
			}
		}()
		return fmt.Errorf("%w: agent on %s, need %s", ErrWrongNetwork, chainID, p.spec.ChainID)
	}

	p.mu.Lock()
	p.session = Session{Account: account, ChainID: chainID, Connected: true}
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"account": account,
		"chain":   chainID,
	}).Info("wallet connected")
	p.alerts.Success("Wallet connected successfully!")
	return nil
}

// Disconnect clears the session and purges every identity-scoped cache.
// Idempotent: a second call is a no-op.
func (p *Provider) Disconnect() {
	p.mu.Lock()
	wasConnected := p.session.Connected
	p.session = Session{}
	p.mu.Unlock()

	if !wasConnected {
		return
	}

	p.purge()
	p.log.Info("wallet disconnected")
	p.alerts.Success("Wallet disconnected successfully!")
}

// SwitchAccount composes Disconnect and Connect. If the connect fails the
// session stays disconnected; no partial identity survives.
func (p *Provider) SwitchAccount(ctx context.Context) error {
	p.Disconnect()
	return p.Connect(ctx)
}

// Watch consumes the agent's out-of-band notifications until ctx ends. Any
// account or network change is handled exactly like an explicit
// disconnect+reconnect; onReset runs after each forced reset so the owner
// can rewire scoped state.
func (p *Provider) Watch(ctx context.Context, onReset func()) {
	if p.agent == nil {
		return
	}
	ntfns := p.agent.Notifications()
	if ntfns == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ntfns:
			if !ok {
				return
			}
			p.log.WithField("kind", n.Kind).Info("agent notification; forcing session reset")
			p.Disconnect()
			if err := p.Connect(ctx); err != nil {
				p.log.WithField("error", err).Warn("reconnect after agent notification failed")
			}
			if onReset != nil {
				onReset()
			}
		}
	}
}

// Status probes onboarding progress: agent present, account authorized,
// right chain, sufficient balance.
func (p *Provider) Status(ctx context.Context) (Step, error) {
	if p.agent == nil {
		return StepInstallAgent, nil
	}

	accounts, err := p.agent.RequestAccounts(ctx)
	if err != nil || len(accounts) == 0 {
		return StepConnect, err
	}

	chainID, err := p.agent.ChainID(ctx)
	if err != nil {
		return StepConnect, err
	}
	if chainID != p.spec.ChainID {
		return StepSwitchChain, nil
	}

	balance, err := p.agent.Balance(ctx, accounts[0])
	if err != nil {
		return StepFund, fmt.Errorf("fetch balance: %w", err)
	}
	if balance < MinPlayableBalance {
		return StepFund, nil
	}
	return StepReady, nil
}
