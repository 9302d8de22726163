package reference

import "market-relay/src/models"

// IndicesSpec subscribes to the benchmark indices only.
func IndicesSpec(correlationID string, mode int) models.MSubscriptionSpec {
	return models.MSubscriptionSpec{
		CorrelationID: correlationID,
		Mode:          mode,
		Segments: []models.MTokenGroup{
			{ExchangeType: models.ExchangeNSECM, Tokens: IndexTokens(models.ExchangeNSECM)},
			{ExchangeType: models.ExchangeBSECM, Tokens: IndexTokens(models.ExchangeBSECM)},
		},
	}
}

// UniverseSpec subscribes to every cached stock plus the benchmark indices.
func (c *Cache) UniverseSpec(correlationID string, mode int) models.MSubscriptionSpec {
	nse := append(c.StockTokens(), IndexTokens(models.ExchangeNSECM)...)
	return models.MSubscriptionSpec{
		CorrelationID: correlationID,
		Mode:          mode,
		Segments: []models.MTokenGroup{
			{ExchangeType: models.ExchangeNSECM, Tokens: nse},
			{ExchangeType: models.ExchangeBSECM, Tokens: IndexTokens(models.ExchangeBSECM)},
		},
	}
}
