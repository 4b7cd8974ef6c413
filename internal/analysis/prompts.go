package analysis

import (
	"fmt"
	"strings"
	"time"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

func monthYear(t time.Time) string {
	return fmt.Sprintf("%s %d", frenchMonths[t.Month()-1], t.Year())
}

func contextBlock(title, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("\n%s :\n%s", title, body)
}

func countryPrompt(name, code string, at time.Time, macroBlock, newsBlock string) string {
	return fmt.Sprintf(`Tu es un analyste financier professionnel. Analyse le pays "%s" (%s) pour l'investissement boursier en %s. Utilise des données réelles et actuelles.
%s%s
RÉPONDS UNIQUEMENT en JSON valide, sans markdown. Format exact :
{
  "macro_score": <note/10 basée sur PIB, inflation, taux, emploi>,
  "geo_score": <note/10 risques géopolitiques, stabilité, sanctions>,
  "micro_score": <note/10 environnement des affaires, réglementation, investissement étranger>,
  "sentiment_score": <note/10 flux de capitaux, sentiment marché>,
  "cycle": "<Expansion|Pic|Récession|Rebond>",
  "cycle_phase": <0.01 à 99.99>,
  "cycle_explanation": "<2-3 phrases>",
  "central_bank_rate": <taux directeur>,
  "unemployment": <taux de chômage>,
  "gdp_growth_5y": [<5 dernières années>],
  "pmi_manufacturing": <PMI manufacturier>,
  "pmi_services": <PMI services>,
  "inflation_cpi": <inflation CPI>,
  "inflation_core": <inflation core>,
  "sectors_buy": [{"name":"<secteur>","signal":"<ACHETER FORT|ACHETER>","reason":"<pourquoi>"}],
  "sectors_sell": [{"name":"<secteur>","signal":"<VENDRE|VENDRE FORT>","reason":"<pourquoi>"}],
  "top_stocks": [{"symbol":"<ticker avec suffixe de bourse, ex: MC.PA>","name":"<nom>","sector":"<secteur>","reason":"<pourquoi>","estimated_growth":"<%% attendu>"}],
  "news_summary": "<impact CT/MT/LT>",
  "score_explanation": "<explication des notes>"
}
Les tickers doivent inclure le suffixe de la bourse (.PA, .L, .KS, .T). Les 5 meilleures actions doivent être cotées dans ce pays.`,
		name, code, monthYear(at),
		contextBlock("Indicateurs macroéconomiques officiels", macroBlock),
		contextBlock("Actualités récentes", newsBlock),
	)
}

func stockPrompt(symbol, name, country string, at time.Time, quoteBlock, newsBlock string) string {
	return fmt.Sprintf(`Tu es un analyste financier quantitatif professionnel. Analyse l'action "%s" (%s) cotée en %s pour un investisseur en %s.
%s%s
RÉPONDS UNIQUEMENT en JSON valide sans markdown :
{
  "price": <cours actuel>,
  "currency": "<devise>",
  "per": <PER>,
  "peg": <PEG>,
  "payout_ratio": <payout ratio %%>,
  "roic_wacc": <écart ROIC - WACC>,
  "debt_assets": <dette/actifs %%>,
  "leverage": <levier financier>,
  "net_margin_evolution": "<tendance marge nette 3 ans>",
  "sharpe_ratio": <ratio de Sharpe>,
  "estimated_growth": <hausse estimée %%>,
  "tp": <take profit>,
  "sl": <stop loss>,
  "estimated_days": <jours estimés pour atteindre le TP>,
  "annual_volatility": <volatilité annualisée, ex: 0.30>,
  "next_dividend_date": "<date>",
  "next_dividend_pct": <rendement %%>,
  "fundamental_analysis": "<analyse fondamentale>",
  "technical_analysis": "<analyse technique>",
  "tp_sl_explanation": "<justification TP/SL>",
  "news_summary": "<actualités et impact>",
  "overall_rating": <note /10>,
  "rating_explanation": "<pourquoi cette note>"
}
TP : niveau avec plus de 66%% de probabilité (ATR, supports, résistances, volatilité historique). SL : moins de 33%% de probabilité d'être touché. Maximise le ratio gain/perte.`,
		symbol, name, country, monthYear(at),
		contextBlock("Données de marché", quoteBlock),
		contextBlock("Actualités récentes", newsBlock),
	)
}

func searchPrompt(query string) string {
	return fmt.Sprintf(`Recherche les actions correspondant à "%s" comme sur Interactive Brokers.
Réponds UNIQUEMENT en JSON valide :
[{"symbol":"<ticker avec suffixe de bourse: AAPL, MC.PA, BAYN.DE, 7203.T>","name":"<nom complet>","sector":"<secteur>","country":"<pays>","countryCode":"<code ISO 2 lettres>","exchange":"<NASDAQ, NYSE, Euronext, LSE, Xetra, TSE...>"}]
Donne jusqu'à %d résultats pertinents. Si c'est un nom d'entreprise, donne le ticker. Si c'est un ticker, donne les variantes sur différentes bourses.`,
		query, MaxSearchResults)
}

func advicePrompt(symbol string, price, avgCost, quantity, tp, sl float64) string {
	return fmt.Sprintf(`Tu es un analyste quantitatif professionnel. Pour l'action %s au prix actuel de %.4g, avec un PRU de %.4g, %.4g titres, un TP actuel de %.4g et un SL actuel de %.4g, suggère de nouveaux TP et SL optimaux.

Réponds en JSON valide sans markdown :
{
  "suggested_tp": <take profit>,
  "suggested_sl": <stop loss>,
  "reasoning": "<volatilité historique et ATR, supports et résistances, momentum, fondamentaux, contexte macro>"
}
Garde un TP réaliste (plus de 60%% de probabilité) et un SL protecteur (moins de 30%% de probabilité d'être touché).`,
		symbol, price, avgCost, quantity, tp, sl)
}
