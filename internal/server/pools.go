package server

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	ammapp "github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// getLiquidity handles GET /api/markets/{id}/liquidity.
func (s *Server) getLiquidity(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pool, err := s.deps.Engine.Pool(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	vault, err := s.deps.Engine.VaultBalance(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, liquidityResponse{
		MarketID:        id,
		LPCollateral:    units(&pool.LPCollateral),
		TradeCollateral: units(&pool.TradeCollateral),
		TotalFee:        units(&pool.TotalFee),
		TotalLP:         units(&pool.TotalLP),
		YesAmount:       units(&pool.YesAmount),
		NoAmount:        units(&pool.NoAmount),
		YesSupply:       units(&pool.YesSupply),
		NoSupply:        units(&pool.NoSupply),
		Idle:            units(&pool.Idle),
		VaultBalance:    units(vault),
		Outcome:         pool.Outcome,
		RedemptionRate:  units(&pool.RedemptionRate),
	})
}

// getPrice handles GET /api/markets/{id}/price.
func (s *Server) getPrice(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	yes, no, err := s.deps.Engine.Prices(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{
		MarketID: id,
		Yes:      units(yes),
		No:       units(no),
		YesWei:   yes.Dec(),
		NoWei:    no.Dec(),
	})
}

// getPosition handles GET /api/markets/{id}/positions/{user}.
func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	acct, err := parseAddress("user", r.PathValue("user"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pos, err := s.deps.Engine.Position(r.Context(), acct, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPosition(id, acct, pos))
}

// estimateRemoval handles GET /api/markets/{id}/estimate-removal?lp=.
func (s *Server) estimateRemoval(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lp, err := parseAmount("lp", r.URL.Query().Get("lp"), true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.deps.Engine.EstimateLiquidityRemoval(r.Context(), id, lp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRemoval(q))
}

// quoteBuy handles GET /api/markets/{id}/quote/buy?outcome=&amount=.
func (s *Server) quoteBuy(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := parseOutcome(r.URL.Query().Get("outcome"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount("amount", r.URL.Query().Get("amount"), true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.deps.Engine.QuoteBuy(r.Context(), id, outcome, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBuy(q))
}

// quoteSell handles GET /api/markets/{id}/quote/sell?outcome=&shares=.
func (s *Server) quoteSell(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := parseOutcome(r.URL.Query().Get("outcome"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shares, err := parseAmount("shares", r.URL.Query().Get("shares"), true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q, err := s.deps.Engine.QuoteSell(r.Context(), id, outcome, shares)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSell(q))
}

// listEvents handles GET /api/markets/{id}/events?limit=.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, r, invalid("limit %q", v))
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := s.deps.Engine.Events(r.Context(), id, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// addLiquidity handles POST /api/markets/{id}/liquidity/add.
func (s *Server) addLiquidity(w http.ResponseWriter, r *http.Request) {
	id, acct, ok := s.call(w, r)
	if !ok {
		return
	}
	var req addLiquidityRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	minLP, err := parseAmount("minLpOut", req.MinLPOut, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q, err := s.deps.Engine.AddLiquidity(r.Context(), acct, ammapp.AddLiquidityParams{
		MarketID: id,
		Amount:   amount,
		MinLPOut: minLP,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addLiquidityResponse{Amount: units(q.Amount), LPMinted: units(q.LPMinted)})
}

// removeLiquidity handles POST /api/markets/{id}/liquidity/remove.
func (s *Server) removeLiquidity(w http.ResponseWriter, r *http.Request) {
	id, acct, ok := s.call(w, r)
	if !ok {
		return
	}
	var req removeLiquidityRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	lp, err := parseAmount("lp", req.LP, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q, err := s.deps.Engine.RemoveLiquidity(r.Context(), acct, id, lp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRemoval(q))
}

// buy handles POST /api/markets/{id}/buy.
func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	id, acct, ok := s.call(w, r)
	if !ok {
		return
	}
	var req buyRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	minShares, err := parseAmount("minSharesOut", req.MinSharesOut, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q, err := s.deps.Engine.Buy(r.Context(), acct, ammapp.BuyParams{
		MarketID:     id,
		Outcome:      outcome,
		AmountIn:     amount,
		MinSharesOut: minShares,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBuy(q))
}

// sell handles POST /api/markets/{id}/sell.
func (s *Server) sell(w http.ResponseWriter, r *http.Request) {
	id, acct, ok := s.call(w, r)
	if !ok {
		return
	}
	var req sellRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shares, err := parseAmount("shares", req.Shares, true)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	minOut, err := parseAmount("minCollateralOut", req.MinCollateralOut, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q, err := s.deps.Engine.Sell(r.Context(), acct, ammapp.SellParams{
		MarketID:         id,
		Outcome:          outcome,
		Shares:           shares,
		MinCollateralOut: minOut,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSell(q))
}

// redeem handles POST /api/markets/{id}/redeem.
func (s *Server) redeem(w http.ResponseWriter, r *http.Request) {
	id, acct, ok := s.call(w, r)
	if !ok {
		return
	}
	q, err := s.deps.Engine.Redeem(r.Context(), acct, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redeemResponse{
		YesBurned: units(q.YesBurned),
		NoBurned:  units(q.NoBurned),
		Payout:    units(q.Payout),
	})
}

// call reads the market id and caller of a mutating request.
func (s *Server) call(w http.ResponseWriter, r *http.Request) (uint64, common.Address, bool) {
	id, err := marketID(r)
	if err != nil {
		s.fail(w, r, err)
		return 0, common.Address{}, false
	}
	acct, err := caller(r)
	if err != nil {
		s.fail(w, r, err)
		return 0, common.Address{}, false
	}
	return id, acct, true
}
