package kis

import (
	"context"
	"strconv"

	"dontcare/internal/logger"
)

// Domestic index output fields
const (
	fieldIndexPrice  = "bstp_nmix_prpr"
	fieldIndexChange = "bstp_nmix_prdy_vrss"
	fieldIndexRate   = "bstp_nmix_prdy_ctrt"
	fieldIndexSign   = "prdy_vrss_sign"
)

// snapshot defaults when an upstream call fails entirely
var (
	kospiDefault = StandardQuote{
		Title: "코스피", Market: "KOSPI",
		Price: "2500.00", Change: "0.00", ChangeRate: "0.00", Sign: "+",
	}
	kosdaqDefault = StandardQuote{
		Title: "코스닥", Market: "KOSDAQ",
		Price: "800.00", Change: "0.00", ChangeRate: "0.00", Sign: "+",
	}
	nasdaqDefault = StandardQuote{
		Title: "나스닥 종합지수", Market: "QQQ (NASDAQ ETF)",
		Price: "18000.00", Change: "0.00", ChangeRate: "0.00", Sign: "+",
	}
)

// MarketSnapshot returns the kospi, kosdaq, and nasdaq index quotes in
// one normalized list. Each index degrades to its default independently;
// the snapshot itself never fails.
func (c *Client) MarketSnapshot(ctx context.Context) []StandardQuote {
	return []StandardQuote{
		c.domesticIndexQuote(ctx, MarketCodeKospi, kospiDefault),
		c.domesticIndexQuote(ctx, MarketCodeKosdaq, kosdaqDefault),
		c.nasdaqIndexQuote(ctx),
	}
}

func (c *Client) domesticIndexQuote(ctx context.Context, marketCode string, def StandardQuote) StandardQuote {
	resp, err := c.GetMarketIndex(ctx, marketCode)
	if err != nil || !resp.OK() {
		logger.WithError(err).WithField("market", def.Market).Warn("Domestic index fetch failed, using default")
		return def
	}

	quote := def
	quote.Price = resp.Field(fieldIndexPrice, def.Price)
	quote.Change = resp.Field(fieldIndexChange, def.Change)
	quote.ChangeRate = resp.Field(fieldIndexRate, def.ChangeRate)
	quote.Sign = signFromCode(resp.Field(fieldIndexSign, ""), quote.Change)
	return quote
}

func (c *Client) nasdaqIndexQuote(ctx context.Context) StandardQuote {
	def := nasdaqDefault

	resp, err := c.GetOverseasIndexPrice(ctx, "COMP", ExchangeNasdaq)
	if err != nil || !resp.OK() {
		logger.WithError(err).Warn("Nasdaq index fetch failed, using default")
		return def
	}

	quote := def
	quote.Price = resp.Field("last", def.Price)
	quote.Change = resp.Field("diff", def.Change)
	quote.ChangeRate = resp.Field("rate", def.ChangeRate)
	quote.Sign = signFromChange(quote.Change)
	return quote
}

// signFromCode maps the KIS sign code (1/2 up, 4/5 down) and falls back
// to the numeric change when the code is absent.
func signFromCode(code, change string) string {
	switch code {
	case "1", "2":
		return "+"
	case "4", "5":
		return "-"
	}
	return signFromChange(change)
}

func signFromChange(change string) string {
	v, err := strconv.ParseFloat(change, 64)
	if err == nil && v < 0 {
		return "-"
	}
	return "+"
}
