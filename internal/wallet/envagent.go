// internal/wallet/envagent.go
package wallet

import "context"

// EnvAgent is a headless signing agent for development and bots: the
// identity comes from configuration instead of an interactive wallet. It
// never emits out-of-band notifications.
type EnvAgent struct {
	AccountAddr string
	Chain       string
}

// NewEnvAgent builds an agent pinned to one account on one chain.
func NewEnvAgent(account, chainID string) *EnvAgent {
	return &EnvAgent{AccountAddr: account, Chain: chainID}
}

func (a *EnvAgent) RequestAccounts(ctx context.Context) ([]string, error) {
	if a.AccountAddr == "" {
		return nil, nil
	}
	return []string{a.AccountAddr}, nil
}

func (a *EnvAgent) ChainID(ctx context.Context) (string, error) {
	return a.Chain, nil
}

// Balance reports the minimum playable balance; a headless agent has no
// chain access of its own and funding checks belong to the real wallet.
func (a *EnvAgent) Balance(ctx context.Context, account string) (uint64, error) {
	return MinPlayableBalance, nil
}

// AddOrSwitchChain flips the pinned chain to the requested one.
func (a *EnvAgent) AddOrSwitchChain(ctx context.Context, spec ChainSpec) error {
	a.Chain = spec.ChainID
	return nil
}

func (a *EnvAgent) Notifications() <-chan Notification {
	return nil
}
