package server

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	ammapp "github.com/fd1az/prediction-amm/business/amm/app"
	"github.com/fd1az/prediction-amm/business/amm/domain"
	market "github.com/fd1az/prediction-amm/business/market/domain"
	oracle "github.com/fd1az/prediction-amm/business/oracle/domain"
)

type createMarketRequest struct {
	MarketID         uint64         `json:"marketId"`
	Period           string         `json:"period"` // Go duration, e.g. "168h"
	VirtualLiquidity string         `json:"virtualLiquidity"`
	Quest            string         `json:"quest"`
	Collateral       common.Address `json:"collateral"`
}

type marketResponse struct {
	ID               uint64         `json:"id"`
	Creator          common.Address `json:"creator"`
	Collateral       common.Address `json:"collateral"`
	Quest            string         `json:"quest"`
	FeeBps           uint64         `json:"feeBps"`
	VirtualLiquidity string         `json:"virtualLiquidity"`
	CreatedAt        time.Time      `json:"createdAt"`
	EndTime          time.Time      `json:"endTime"`
	Outcome          market.Outcome `json:"outcome"`
	Resolved         bool           `json:"resolved"`
	Expired          bool           `json:"expired"`
}

func toMarket(m market.Market, now time.Time) marketResponse {
	return marketResponse{
		ID:               m.ID,
		Creator:          m.Creator,
		Collateral:       m.Collateral,
		Quest:            m.Quest,
		FeeBps:           m.FeeBps,
		VirtualLiquidity: units(&m.VirtualLiquidity),
		CreatedAt:        m.CreatedAt,
		EndTime:          m.EndTime,
		Outcome:          m.Outcome,
		Resolved:         m.Resolved(),
		Expired:          m.Expired(now),
	}
}

type liquidityResponse struct {
	MarketID        uint64         `json:"marketId"`
	LPCollateral    string         `json:"lpCollateral"`
	TradeCollateral string         `json:"tradeCollateral"`
	TotalFee        string         `json:"totalFee"`
	TotalLP         string         `json:"totalLp"`
	YesAmount       string         `json:"yesAmount"`
	NoAmount        string         `json:"noAmount"`
	YesSupply       string         `json:"yesSupply"`
	NoSupply        string         `json:"noSupply"`
	Idle            string         `json:"idle"`
	VaultBalance    string         `json:"vaultBalance"`
	Outcome         market.Outcome `json:"outcome"`
	RedemptionRate  string         `json:"redemptionRate"`
}

type priceResponse struct {
	MarketID uint64 `json:"marketId"`
	Yes      string `json:"yes"`
	No       string `json:"no"`
	YesWei   string `json:"yesWei"`
	NoWei    string `json:"noWei"`
}

type positionResponse struct {
	MarketID uint64         `json:"marketId"`
	Account  common.Address `json:"account"`
	LP       string         `json:"lp"`
	Yes      string         `json:"yes"`
	No       string         `json:"no"`
}

func toPosition(id uint64, acct common.Address, p domain.Position) positionResponse {
	return positionResponse{
		MarketID: id,
		Account:  acct,
		LP:       units(&p.LP),
		Yes:      units(&p.YesBalance),
		No:       units(&p.NoBalance),
	}
}

type removalResponse struct {
	LP             string `json:"lp"`
	FeeShare       string `json:"feeShare"`
	PrincipalShare string `json:"principalShare"`
	TotalValue     string `json:"totalValue"`
}

func toRemoval(q domain.RemovalQuote) removalResponse {
	return removalResponse{
		LP:             units(q.LP),
		FeeShare:       units(q.FeeShare),
		PrincipalShare: units(q.PrincipalShare),
		TotalValue:     units(q.TotalValue),
	}
}

type buyRequest struct {
	Outcome      string `json:"outcome"`
	Amount       string `json:"amount"`
	MinSharesOut string `json:"minSharesOut"`
}

type buyResponse struct {
	Outcome  market.Outcome `json:"outcome"`
	AmountIn string         `json:"amountIn"`
	Fee      string         `json:"fee"`
	Net      string         `json:"net"`
	Shares   string         `json:"shares"`
}

func toBuy(q domain.BuyQuote) buyResponse {
	return buyResponse{
		Outcome:  q.Side,
		AmountIn: units(q.AmountIn),
		Fee:      units(q.Fee),
		Net:      units(q.Net),
		Shares:   units(q.Shares),
	}
}

type sellRequest struct {
	Outcome          string `json:"outcome"`
	Shares           string `json:"shares"`
	MinCollateralOut string `json:"minCollateralOut"`
}

type sellResponse struct {
	Outcome market.Outcome `json:"outcome"`
	Shares  string         `json:"shares"`
	Gross   string         `json:"gross"`
	Fee     string         `json:"fee"`
	Payout  string         `json:"payout"`
}

func toSell(q domain.SellQuote) sellResponse {
	return sellResponse{
		Outcome: q.Side,
		Shares:  units(q.Shares),
		Gross:   units(q.Gross),
		Fee:     units(q.Fee),
		Payout:  units(q.Payout),
	}
}

type addLiquidityRequest struct {
	Amount   string `json:"amount"`
	MinLPOut string `json:"minLpOut"`
}

type addLiquidityResponse struct {
	Amount   string `json:"amount"`
	LPMinted string `json:"lpMinted"`
}

type removeLiquidityRequest struct {
	LP string `json:"lp"`
}

type redeemResponse struct {
	YesBurned string `json:"yesBurned"`
	NoBurned  string `json:"noBurned"`
	Payout    string `json:"payout"`
}

type proposeRequest struct {
	Outcome string `json:"outcome"`
	Bond    string `json:"bond"`
}

type settleRequest struct {
	Outcome string `json:"outcome"`
}

type proposalResponse struct {
	MarketID   uint64          `json:"marketId"`
	Proposer   common.Address  `json:"proposer"`
	Outcome    market.Outcome  `json:"outcome"`
	Bond       string          `json:"bond"`
	ProposedAt time.Time       `json:"proposedAt"`
	Deadline   time.Time       `json:"deadline"`
	Disputer   *common.Address `json:"disputer,omitempty"`
	State      oracle.State    `json:"state"`
	Resolution market.Outcome  `json:"resolution"`
}

func toProposal(p oracle.Proposal) proposalResponse {
	out := proposalResponse{
		MarketID:   p.MarketID,
		Proposer:   p.Proposer,
		Outcome:    p.Outcome,
		Bond:       units(&p.Bond),
		ProposedAt: p.ProposedAt,
		Deadline:   p.Deadline,
		State:      p.State,
		Resolution: p.Resolution,
	}
	if p.Disputer != (common.Address{}) {
		d := p.Disputer
		out.Disputer = &d
	}
	return out
}

type finalizeResponse struct {
	MarketID uint64         `json:"marketId"`
	Outcome  market.Outcome `json:"outcome"`
}

type tokenInfoRequest struct {
	Token         common.Address `json:"token"`
	Enabled       bool           `json:"enabled"`
	MinCollateral string         `json:"minCollateral"`
}

type tokenInfoResponse struct {
	Token         common.Address `json:"token"`
	Symbol        string         `json:"symbol"`
	Enabled       bool           `json:"enabled"`
	MinCollateral string         `json:"minCollateral"`
}

func toTokenInfo(t market.TokenInfo) tokenInfoResponse {
	return tokenInfoResponse{
		Token:         t.Token,
		Symbol:        t.Symbol,
		Enabled:       t.Enabled,
		MinCollateral: units(&t.MinCollateral),
	}
}

type faucetRequest struct {
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
}

type balanceResponse struct {
	Token   common.Address `json:"token"`
	Symbol  string         `json:"symbol"`
	Balance string         `json:"balance"`
}

type poolSummary struct {
	Market   marketResponse `json:"market"`
	PriceYes string         `json:"priceYes"`
	PriceNo  string         `json:"priceNo"`
	TotalLP  string         `json:"totalLp"`
	Holders  int            `json:"holders"`
}

func toSummary(s ammapp.PoolSnapshot, now time.Time) poolSummary {
	return poolSummary{
		Market:   toMarket(s.Market, now),
		PriceYes: units(s.PriceYes),
		PriceNo:  units(s.PriceNo),
		TotalLP:  units(&s.Pool.TotalLP),
		Holders:  s.Holders,
	}
}
