package dataflows

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/cortexdesk/models"
)

// ErrUnsupportedIndicator is a configuration error and is never retried.
var ErrUnsupportedIndicator = errors.New("unsupported indicator")

// IndicatorDescriptions documents every supported indicator for the market analyst.
var IndicatorDescriptions = map[string]string{
	"close_50_sma": "50 SMA: A medium-term trend indicator. Usage: Identify trend direction and serve as dynamic support/resistance. " +
		"Tips: It lags price; combine with faster indicators for timely signals.",
	"close_200_sma": "200 SMA: A long-term trend benchmark. Usage: Confirm overall market trend and identify golden/death cross setups. " +
		"Tips: It reacts slowly; best for strategic trend confirmation rather than frequent trading entries.",
	"close_10_ema": "10 EMA: A responsive short-term average. Usage: Capture quick shifts in momentum and potential entry points. " +
		"Tips: Prone to noise in choppy markets; use alongside longer averages for filtering false signals.",
	"macd": "MACD: Computes momentum via differences of EMAs. Usage: Look for crossovers and divergence as signals of trend changes. " +
		"Tips: Confirm with other indicators in low-volatility or sideways markets.",
	"macds": "MACD Signal: An EMA smoothing of the MACD line. Usage: Use crossovers with the MACD line to trigger trades. " +
		"Tips: Should be part of a broader strategy to avoid false positives.",
	"macdh": "MACD Histogram: Shows the gap between the MACD line and its signal. Usage: Visualize momentum strength and spot divergence early. " +
		"Tips: Can be volatile; complement with additional filters in fast-moving markets.",
	"rsi": "RSI: Measures momentum to flag overbought/oversold conditions. Usage: Apply 70/30 thresholds and watch for divergence to signal reversals. " +
		"Tips: In strong trends, RSI may remain extreme; always cross-check with trend analysis.",
	"boll": "Bollinger Middle: A 20 SMA serving as the basis for Bollinger Bands. Usage: Acts as a dynamic benchmark for price movement. " +
		"Tips: Combine with the upper and lower bands to effectively spot breakouts or reversals.",
	"boll_ub": "Bollinger Upper Band: Typically 2 standard deviations above the middle line. Usage: Signals potential overbought conditions and breakout zones. " +
		"Tips: Confirm signals with other tools; prices may ride the band in strong trends.",
	"boll_lb": "Bollinger Lower Band: Typically 2 standard deviations below the middle line. Usage: Indicates potential oversold conditions. " +
		"Tips: Use additional analysis to avoid false reversal signals.",
	"atr": "ATR: Averages true range to measure volatility. Usage: Set stop-loss levels and adjust position sizes based on current market volatility. " +
		"Tips: It's a reactive measure, so use it as part of a broader risk management strategy.",
	"vwma": "VWMA: A moving average weighted by volume. Usage: Confirm trends by integrating price action with volume data. " +
		"Tips: Watch for skewed results from volume spikes; use in combination with other volume analyses.",
	"mfi": "MFI: The Money Flow Index is a momentum indicator that uses both price and volume to measure buying and selling pressure. " +
		"Usage: Identify overbought (>80) or oversold (<20) conditions and confirm the strength of trends or reversals. " +
		"Tips: Use alongside RSI or MACD to confirm signals; divergence between price and MFI can indicate potential reversals.",
}

// SupportedIndicators returns the indicator names in sorted order.
func SupportedIndicators() []string {
	names := make([]string, 0, len(IndicatorDescriptions))
	for name := range IndicatorDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type series struct {
	dates  []string
	high   []float64
	low    []float64
	close  []float64
	volume []float64
}

func newSeries(bars []models.PriceBar) series {
	sorted := append([]models.PriceBar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	s := series{}
	for _, b := range sorted {
		s.dates = append(s.dates, b.Date.Format(dateLayout))
		s.high = append(s.high, b.High.InexactFloat64())
		s.low = append(s.low, b.Low.InexactFloat64())
		s.close = append(s.close, b.Close.InexactFloat64())
		s.volume = append(s.volume, float64(b.Volume))
	}
	return s
}

// CalculateIndicator computes one indicator for every bar. Dates without
// enough history are omitted from the result.
func CalculateIndicator(name string, bars []models.PriceBar) (map[string]float64, error) {
	if _, ok := IndicatorDescriptions[name]; !ok {
		return nil, fmt.Errorf("%w: %s (choose from %s)", ErrUnsupportedIndicator, name, strings.Join(SupportedIndicators(), ", "))
	}
	s := newSeries(bars)

	var values []float64
	switch name {
	case "close_50_sma":
		values = calculateSMA(s.close, 50)
	case "close_200_sma":
		values = calculateSMA(s.close, 200)
	case "close_10_ema":
		values = calculateEMA(s.close, 10)
	case "macd":
		values, _, _ = calculateMACD(s.close)
	case "macds":
		_, values, _ = calculateMACD(s.close)
	case "macdh":
		_, _, values = calculateMACD(s.close)
	case "rsi":
		values = calculateRSI(s.close, 14)
	case "boll":
		values = calculateSMA(s.close, 20)
	case "boll_ub":
		values = calculateBollinger(s.close, 20, 2)
	case "boll_lb":
		values = calculateBollinger(s.close, 20, -2)
	case "atr":
		values = calculateATR(s, 14)
	case "vwma":
		values = calculateVWMA(s, 20)
	case "mfi":
		values = calculateMFI(s, 14)
	}

	out := make(map[string]float64, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			out[s.dates[i]] = v
		}
	}
	return out, nil
}

// FormatIndicatorWindow renders one line per day from currDate back to
// currDate-lookback. Offline windows list trading days only; online windows
// mark non-trading days.
func FormatIndicatorWindow(indicator string, curr time.Time, lookback int, values map[string]float64, tradingDays map[string]bool, online bool) string {
	before := curr.AddDate(0, 0, -lookback)

	var sb strings.Builder
	for d := curr; !d.Before(before); d = d.AddDate(0, 0, -1) {
		key := d.Format(dateLayout)
		if !tradingDays[key] {
			if online {
				fmt.Fprintf(&sb, "%s: N/A: Not a trading day (weekend or holiday)\n", key)
			}
			continue
		}
		v, ok := values[key]
		if !ok {
			fmt.Fprintf(&sb, "%s: \n", key)
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", key, strconv.FormatFloat(v, 'f', 4, 64))
	}

	return fmt.Sprintf("## %s values from %s to %s:\n\n%s\n\n%s",
		indicator, before.Format(dateLayout), curr.Format(dateLayout), sb.String(), IndicatorDescriptions[indicator])
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// calculateSMA calculates Simple Moving Average
func calculateSMA(xs []float64, period int) []float64 {
	out := nanSlice(len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// calculateEMA seeds with the SMA of the first period values.
func calculateEMA(xs []float64, period int) []float64 {
	out := nanSlice(len(xs))
	if len(xs) < period {
		return out
	}
	multiplier := 2.0 / (float64(period) + 1.0)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += xs[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema

	for i := period; i < len(xs); i++ {
		ema = (xs[i] * multiplier) + (ema * (1 - multiplier))
		out[i] = ema
	}
	return out
}

// calculateMACD returns the MACD line, its 9 period signal and the histogram.
func calculateMACD(close []float64) (macd, signal, hist []float64) {
	ema12 := calculateEMA(close, 12)
	ema26 := calculateEMA(close, 26)

	macd = nanSlice(len(close))
	first := -1
	for i := range close {
		if math.IsNaN(ema12[i]) || math.IsNaN(ema26[i]) {
			continue
		}
		macd[i] = ema12[i] - ema26[i]
		if first < 0 {
			first = i
		}
	}

	signal = nanSlice(len(close))
	hist = nanSlice(len(close))
	if first < 0 {
		return macd, signal, hist
	}
	sig := calculateEMA(macd[first:], 9)
	for i, v := range sig {
		signal[first+i] = v
		if !math.IsNaN(v) {
			hist[first+i] = macd[first+i] - v
		}
	}
	return macd, signal, hist
}

// calculateRSI uses Wilder smoothing.
func calculateRSI(close []float64, period int) []float64 {
	out := nanSlice(len(close))
	if len(close) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := close[i] - close[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(close); i++ {
		change := close[i] - close[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// calculateBollinger returns sma + k*stddev over period.
func calculateBollinger(close []float64, period int, k float64) []float64 {
	mid := calculateSMA(close, period)
	out := nanSlice(len(close))
	for i := period - 1; i < len(close); i++ {
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := close[j] - mid[i]
			variance += diff * diff
		}
		variance /= float64(period)
		out[i] = mid[i] + k*math.Sqrt(variance)
	}
	return out
}

// calculateATR calculates Average True Range
func calculateATR(s series, period int) []float64 {
	out := nanSlice(len(s.close))
	if len(s.close) < period+1 {
		return out
	}
	trueRanges := make([]float64, len(s.close))
	for i := 1; i < len(s.close); i++ {
		tr1 := s.high[i] - s.low[i]
		tr2 := math.Abs(s.high[i] - s.close[i-1])
		tr3 := math.Abs(s.low[i] - s.close[i-1])
		trueRanges[i] = math.Max(tr1, math.Max(tr2, tr3))
	}
	for i := period; i < len(s.close); i++ {
		atr := 0.0
		for j := i - period + 1; j <= i; j++ {
			atr += trueRanges[j]
		}
		out[i] = atr / float64(period)
	}
	return out
}

// calculateVWMA calculates Volume Weighted Moving Average
func calculateVWMA(s series, period int) []float64 {
	out := nanSlice(len(s.close))
	for i := period - 1; i < len(s.close); i++ {
		var totalVolume, weightedSum float64
		for j := i - period + 1; j <= i; j++ {
			totalVolume += s.volume[j]
			weightedSum += s.close[j] * s.volume[j]
		}
		if totalVolume > 0 {
			out[i] = weightedSum / totalVolume
		} else {
			out[i] = 0
		}
	}
	return out
}

// calculateMFI calculates Money Flow Index
func calculateMFI(s series, period int) []float64 {
	out := nanSlice(len(s.close))
	if len(s.close) < period+1 {
		return out
	}
	typical := make([]float64, len(s.close))
	for i := range s.close {
		typical[i] = (s.high[i] + s.low[i] + s.close[i]) / 3
	}
	for i := period; i < len(s.close); i++ {
		var positiveFlow, negativeFlow float64
		for j := i - period + 1; j <= i; j++ {
			rawMoneyFlow := typical[j] * s.volume[j]
			if typical[j] > typical[j-1] {
				positiveFlow += rawMoneyFlow
			} else if typical[j] < typical[j-1] {
				negativeFlow += rawMoneyFlow
			}
		}
		if negativeFlow == 0 {
			out[i] = 100
			continue
		}
		moneyRatio := positiveFlow / negativeFlow
		out[i] = 100 - (100 / (1 + moneyRatio))
	}
	return out
}
