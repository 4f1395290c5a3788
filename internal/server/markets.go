package server

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	market "github.com/fd1az/prediction-amm/business/market/domain"
)

// createMarket handles POST /api/markets.
func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	creator, err := caller(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req createMarketRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	params := market.CreateParams{
		MarketID:         req.MarketID,
		Period:           s.cfg.DefaultPeriod,
		VirtualLiquidity: s.cfg.DefaultVirtualLiquidity,
		Quest:            req.Quest,
		Collateral:       req.Collateral,
	}
	if req.Period != "" {
		if params.Period, err = time.ParseDuration(req.Period); err != nil {
			s.fail(w, r, invalid("period: %v", err))
			return
		}
	}
	if req.VirtualLiquidity != "" {
		if params.VirtualLiquidity, err = parseAmount("virtualLiquidity", req.VirtualLiquidity, true); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if params.Collateral == (common.Address{}) {
		params.Collateral = s.cfg.DefaultCollateral
	}

	m, err := s.deps.Markets.CreateMarket(r.Context(), creator, params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMarket(m, s.deps.Clock.Now()))
}

// listMarkets handles GET /api/markets.
func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Clock.Now()
	snaps := s.deps.Engine.Snapshot(r.Context())

	out := make([]poolSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSummary(snap, now))
	}
	writeJSON(w, http.StatusOK, out)
}

// getMarket handles GET /api/markets/{id}.
func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.deps.Markets.Market(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMarket(m, s.deps.Clock.Now()))
}

// listTokens handles GET /api/tokens.
func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.deps.Markets.Tokens(r.Context())
	out := make([]tokenInfoResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toTokenInfo(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// setTokenInfo handles POST /api/admin/tokens.
func (s *Server) setTokenInfo(w http.ResponseWriter, r *http.Request) {
	acct, err := caller(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req tokenInfoRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	minCollateral, err := parseAmount("minCollateral", req.MinCollateral, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	info, err := s.deps.Markets.SetTokenInfo(r.Context(), acct, req.Token, req.Enabled, minCollateral)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenInfo(info))
}

// faucet handles POST /api/faucet. Development only.
func (s *Server) faucet(w http.ResponseWriter, r *http.Request) {
	acct, err := caller(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req faucetRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	token := req.Token
	if token == (common.Address{}) {
		token = s.cfg.DefaultCollateral
	}
	if _, err := s.deps.Markets.TokenInfo(r.Context(), token); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.deps.Ledger.Mint(r.Context(), token, acct, amount); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info(r.Context(), "faucet mint", "account", acct.Hex(), "token", token.Hex(), "amount", units(amount))

	s.writeBalance(w, r, acct, token)
}

// getBalances handles GET /api/balances/{account}.
func (s *Server) getBalances(w http.ResponseWriter, r *http.Request) {
	acct, err := parseAddress("account", r.PathValue("account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	tokens := s.deps.Markets.Tokens(r.Context())
	out := make([]balanceResponse, 0, len(tokens))
	for _, t := range tokens {
		bal, err := s.deps.Ledger.BalanceOf(r.Context(), t.Token, acct)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		out = append(out, balanceResponse{Token: t.Token, Symbol: t.Symbol, Balance: units(bal)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeBalance(w http.ResponseWriter, r *http.Request, acct, token common.Address) {
	bal, err := s.deps.Ledger.BalanceOf(r.Context(), token, acct)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	info, _ := s.deps.Markets.TokenInfo(r.Context(), token)
	writeJSON(w, http.StatusOK, balanceResponse{Token: token, Symbol: info.Symbol, Balance: units(bal)})
}
