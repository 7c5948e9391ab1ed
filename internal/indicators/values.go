package indicators

import (
	"errors"
	"math"

	"github.com/quantara/ensemble-trader/pkg/types"
)

// ErrInsufficientData is returned when the history is shorter than the
// indicator's required period.
var ErrInsufficientData = errors.New("insufficient data for indicator calculation")

// SMA returns the simple moving average of closes over the last period bars.
func SMA(data []types.OHLCV, period int) (float64, error) {
	if len(data) < period || period <= 0 {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(data) - period; i < len(data); i++ {
		sum += data[i].Close
	}
	return sum / float64(period), nil
}

// EMA returns the exponential moving average of closes over the last period
// bars, seeded with the SMA of the first period.
func EMA(data []types.OHLCV, period int) (float64, error) {
	if len(data) < period || period <= 0 {
		return 0, ErrInsufficientData
	}
	seed, err := SMA(data[:period], period)
	if err != nil {
		return 0, err
	}
	mult := 2.0 / float64(period+1)
	ema := seed
	for i := period; i < len(data); i++ {
		ema = (data[i].Close-ema)*mult + ema
	}
	return ema, nil
}

// RSI returns the Wilder relative strength index over the last period bars.
func RSI(data []types.OHLCV, period int) (float64, error) {
	if len(data) < period+1 {
		return 0, ErrInsufficientData
	}
	gains, losses := 0.0, 0.0
	for i := len(data) - period; i < len(data); i++ {
		change := data[i].Close - data[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100, nil
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs), nil
}

// ATR returns the average true range over the last period bars.
func ATR(data []types.OHLCV, period int) (float64, error) {
	if len(data) < period+1 {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(data) - period; i < len(data); i++ {
		tr := math.Max(
			data[i].High-data[i].Low,
			math.Max(
				math.Abs(data[i].High-data[i-1].Close),
				math.Abs(data[i].Low-data[i-1].Close),
			),
		)
		sum += tr
	}
	return sum / float64(period), nil
}

// MACD returns the MACD line and its signal line.
func MACD(data []types.OHLCV, fast, slow, signalPeriod int) (macd, signal float64, err error) {
	if len(data) < slow+signalPeriod {
		return 0, 0, ErrInsufficientData
	}
	// Build the MACD series over the tail so the signal EMA has history.
	series := make([]float64, 0, signalPeriod)
	for i := len(data) - signalPeriod; i <= len(data); i++ {
		window := data[:i]
		if len(window) < slow {
			continue
		}
		fastEMA, ferr := EMA(window, fast)
		if ferr != nil {
			return 0, 0, ferr
		}
		slowEMA, serr := EMA(window, slow)
		if serr != nil {
			return 0, 0, serr
		}
		series = append(series, fastEMA-slowEMA)
	}
	if len(series) == 0 {
		return 0, 0, ErrInsufficientData
	}
	macd = series[len(series)-1]
	signal = series[0]
	mult := 2.0 / float64(signalPeriod+1)
	for _, v := range series[1:] {
		signal = (v-signal)*mult + signal
	}
	return macd, signal, nil
}

// Bollinger returns the upper, middle and lower Bollinger bands.
func Bollinger(data []types.OHLCV, period int, stdDev float64) (upper, mid, lower float64, err error) {
	mid, err = SMA(data, period)
	if err != nil {
		return 0, 0, 0, err
	}
	variance := 0.0
	for i := len(data) - period; i < len(data); i++ {
		d := data[i].Close - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return mid + stdDev*sd, mid, mid - stdDev*sd, nil
}

// Params bundles the periods used when deriving a full indicator set.
type Params struct {
	RSIPeriod    int
	ATRPeriod    int
	MACDFast     int
	MACDSlow     int
	MACDSignal   int
	BollPeriod   int
	BollStdDev   float64
	SMAFast      int
	SMASlow      int
}

// DefaultParams mirrors the periods the engine uses in production.
func DefaultParams() Params {
	return Params{
		RSIPeriod:  14,
		ATRPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BollPeriod: 20,
		BollStdDev: 2.0,
		SMAFast:    20,
		SMASlow:    50,
	}
}

// MinBars returns the minimum history length needed to derive all values.
func (p Params) MinBars() int {
	min := p.SMASlow
	if n := p.MACDSlow + p.MACDSignal; n > min {
		min = n
	}
	if n := p.ATRPeriod + 1; n > min {
		min = n
	}
	return min
}

// Derive computes the full indicator set for a trailing OHLCV history.
func Derive(data []types.OHLCV, p Params) (types.IndicatorSet, error) {
	if len(data) < p.MinBars() {
		return types.IndicatorSet{}, ErrInsufficientData
	}
	var set types.IndicatorSet
	var err error
	if set.RSI, err = RSI(data, p.RSIPeriod); err != nil {
		return set, err
	}
	if set.ATR, err = ATR(data, p.ATRPeriod); err != nil {
		return set, err
	}
	if set.MACD, set.MACDSignal, err = MACD(data, p.MACDFast, p.MACDSlow, p.MACDSignal); err != nil {
		return set, err
	}
	if set.BollingerUpper, set.BollingerMid, set.BollingerLower, err = Bollinger(data, p.BollPeriod, p.BollStdDev); err != nil {
		return set, err
	}
	if set.SMAFast, err = SMA(data, p.SMAFast); err != nil {
		return set, err
	}
	if set.SMASlow, err = SMA(data, p.SMASlow); err != nil {
		return set, err
	}
	return set, nil
}
