package ml

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/smartcity/predictor/internal/aqi"
	"github.com/smartcity/predictor/internal/domain"
	"github.com/smartcity/predictor/internal/features"
	"github.com/smartcity/predictor/pkg/utils"
)

// TrainConfig holds the training protocol and hyper-parameters
type TrainConfig struct {
	Boosting     BoostingParams `yaml:"boosting"`
	Forest       ForestParams   `yaml:"forest"`
	Seed         int64          `yaml:"seed"`
	Folds        int            `yaml:"folds"`
	TestFraction float64        `yaml:"test_fraction"`
	MinRows      int            `yaml:"min_rows"`
}

// DefaultTrainConfig returns the production training settings
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Boosting: BoostingParams{
			Estimators:      300,
			MaxDepth:        5,
			LearningRate:    0.05,
			MinSamplesSplit: 10,
			MinSamplesLeaf:  5,
			Subsample:       0.8,
		},
		Forest: ForestParams{
			Estimators:      200,
			MaxDepth:        8,
			MinSamplesSplit: 10,
			MinSamplesLeaf:  5,
		},
		Seed:         42,
		Folds:        5,
		TestFraction: 0.2,
		MinRows:      100,
	}
}

// seasonImbalanceRatio is the worst/best seasonal MAE ratio that gets flagged
const seasonImbalanceRatio = 3.0

// lagDominanceShare is the lag-feature importance share above which the
// pollutant model is flagged as dependent on measured lags
const lagDominanceShare = 0.7

// minSeasonSamples is the smallest held-out season reported in diagnostics
const minSeasonSamples = 5

// Trainer fits both regressors from an engineered frame
type Trainer struct {
	cfg    TrainConfig
	logger *zap.Logger
}

// NewTrainer creates a trainer
func NewTrainer(cfg TrainConfig, logger *zap.Logger) *Trainer {
	return &Trainer{cfg: cfg, logger: logger}
}

// Train runs the full protocol: time-ordered split, scaler fit on the
// training split only, held-out metrics, time-series cross-validation,
// seasonal diagnostics and the feature-importance audit.
func (t *Trainer) Train(ctx context.Context, frame *features.Frame) (*Model, error) {
	start := time.Now()
	cfg := t.cfg

	pollutantRows := frame.PollutantRows()
	congestionRows := frame.CongestionRows()
	interpolated := 0
	for _, r := range frame.Rows {
		if r.Complete && r.Interpolated {
			interpolated++
		}
	}

	t.logger.Info("Training samples after feature engineering",
		zap.Int("complete_rows", frame.Complete()),
		zap.Int("pollutant_rows", len(pollutantRows)),
		zap.Int("congestion_rows", len(congestionRows)),
		zap.Int("interpolated_excluded", interpolated))

	if len(pollutantRows) < cfg.MinRows || len(congestionRows) < cfg.MinRows {
		return nil, fmt.Errorf("%w: need %d rows, have %d pollutant and %d congestion",
			ErrInsufficientData, cfg.MinRows, len(pollutantRows), len(congestionRows))
	}

	Xp, yp := features.Matrix(pollutantRows, features.PM25Target)
	Xc, yc := features.Matrix(congestionRows, features.CongestionTarget)
	splitP := int(float64(len(yp)) * (1 - cfg.TestFraction))
	splitC := int(float64(len(yc)) * (1 - cfg.TestFraction))

	scaler := FitScaler(Xp[:splitP])
	pollutant := FitGradientBoosting(scaler.TransformAll(Xp[:splitP]), yp[:splitP], cfg.Boosting, cfg.Seed)
	congestion, err := FitRandomForest(ctx, scaler.TransformAll(Xc[:splitC]), yc[:splitC], cfg.Forest, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("ml: failed to fit congestion model: %w", err)
	}

	pm25Pred := PredictAll(pollutant, scaler.TransformAll(Xp[splitP:]))
	for i, v := range pm25Pred {
		pm25Pred[i] = clampOutput(v, MaxPM25)
	}
	congestionPred := PredictAll(congestion, scaler.TransformAll(Xc[splitC:]))
	for i, v := range congestionPred {
		congestionPred[i] = clampOutput(v, MaxCongestion)
	}

	pm25Test := yp[splitP:]
	aqiTrue := make([]float64, len(pm25Test))
	aqiPred := make([]float64, len(pm25Test))
	for i := range pm25Test {
		aqiTrue[i] = float64(aqi.FromPM25(pm25Test[i]))
		aqiPred[i] = float64(aqi.FromPM25(pm25Pred[i]))
	}

	metrics := Metrics{
		PM25: TargetMetrics{
			MAE:          round(MeanAbsoluteError(pm25Test, pm25Pred), 2),
			R2:           round(R2(pm25Test, pm25Pred), 4),
			TestSamples:  len(pm25Test),
			TrainSamples: splitP,
		},
		AQIDerived: TargetMetrics{
			MAE: round(MeanAbsoluteError(aqiTrue, aqiPred), 2),
			R2:  round(R2(aqiTrue, aqiPred), 4),
		},
		Congestion: TargetMetrics{
			MAE:          round(MeanAbsoluteError(yc[splitC:], congestionPred), 2),
			R2:           round(R2(yc[splitC:], congestionPred), 4),
			TestSamples:  len(yc) - splitC,
			TrainSamples: splitC,
		},
		FeatureNames: features.Names[:],
		FeatureImportance: map[string]map[string]float64{
			"pm25":    importanceMap(pollutant.Importance()),
			"traffic": importanceMap(congestion.Importance()),
		},
		CVMethod:         fmt.Sprintf("TimeSeriesSplit(n_splits=%d)", cfg.Folds),
		InterpolatedRows: interpolated,
		TrainedAt:        time.Now().UTC(),
	}

	if err := t.crossValidate(ctx, &metrics, Xp, yp, Xc, yc); err != nil {
		return nil, err
	}

	metrics.Seasonal = t.seasonalDiagnostics(pollutantRows[splitP:], pm25Pred)
	metrics.Audit = t.audit(pollutant.Importance())

	t.logger.Info("Training complete",
		zap.Float64("pm25_r2", metrics.PM25.R2),
		zap.Float64("pm25_cv_r2_mean", metrics.PM25.CVR2Mean),
		zap.Float64("pm25_cv_r2_std", metrics.PM25.CVR2Std),
		zap.Float64("aqi_derived_r2", metrics.AQIDerived.R2),
		zap.Float64("traffic_r2", metrics.Congestion.R2),
		zap.Float64("traffic_cv_r2_mean", metrics.Congestion.CVR2Mean),
		zap.Duration("elapsed", time.Since(start)))

	return &Model{
		Pollutant:  pollutant,
		Congestion: congestion,
		Scaler:     scaler,
		Metrics:    metrics,
	}, nil
}

func (t *Trainer) crossValidate(ctx context.Context, m *Metrics, Xp [][]float64, yp []float64, Xc [][]float64, yc []float64) error {
	cfg := t.cfg

	pm25Folds, err := CrossValidate(Xp, yp, cfg.Folds, func(X [][]float64, y []float64) (Regressor, error) {
		s := FitScaler(X)
		return scaledRegressor{scaler: s, model: FitGradientBoosting(s.TransformAll(X), y, cfg.Boosting, cfg.Seed)}, nil
	})
	if err != nil {
		return fmt.Errorf("ml: failed to cross-validate pollutant model: %w", err)
	}

	congestionFolds, err := CrossValidate(Xc, yc, cfg.Folds, func(X [][]float64, y []float64) (Regressor, error) {
		s := FitScaler(X)
		f, err := FitRandomForest(ctx, s.TransformAll(X), y, cfg.Forest, cfg.Seed)
		if err != nil {
			return nil, err
		}
		return scaledRegressor{scaler: s, model: f}, nil
	})
	if err != nil {
		return fmt.Errorf("ml: failed to cross-validate congestion model: %w", err)
	}

	m.PM25.CVR2Mean, m.PM25.CVR2Std, m.PM25.CVR2Folds = summarizeFolds(pm25Folds)
	m.Congestion.CVR2Mean, m.Congestion.CVR2Std, m.Congestion.CVR2Folds = summarizeFolds(congestionFolds)
	return nil
}

func (t *Trainer) seasonalDiagnostics(rows []features.Row, pred []float64) SeasonalDiagnostics {
	d := SeasonalDiagnostics{Seasons: make(map[string]SeasonMetrics)}

	lowest, highest := math.Inf(1), 0.0
	for _, season := range domain.Seasons {
		var actual, predicted []float64
		for i, r := range rows {
			if domain.SeasonOf(r.Month) == season {
				actual = append(actual, r.PM25)
				predicted = append(predicted, pred[i])
			}
		}
		if len(actual) < minSeasonSamples {
			continue
		}

		mae := round(MeanAbsoluteError(actual, predicted), 2)
		d.Seasons[string(season)] = SeasonMetrics{
			Samples:    len(actual),
			PM25MAE:    mae,
			MeanActual: round(stat.Mean(actual, nil), 1),
		}
		lowest = math.Min(lowest, mae)
		highest = math.Max(highest, mae)
	}

	if len(d.Seasons) >= 2 {
		d.ImbalanceRatio = round(highest/math.Max(lowest, 0.01), 2)
		if d.ImbalanceRatio > seasonImbalanceRatio {
			d.Imbalanced = true
			t.logger.Warn("Seasonal imbalance in pollutant error",
				zap.Float64("ratio", d.ImbalanceRatio),
				zap.Float64("worst_mae", highest),
				zap.Float64("best_mae", lowest))
		}
	}
	return d
}

func (t *Trainer) audit(importance []float64) FeatureAudit {
	var lag, meteo float64
	for i, v := range importance {
		switch {
		case features.IsLag(i):
			lag += v
		case features.IsMeteorological(i):
			meteo += v
		}
	}

	a := FeatureAudit{
		LagPct:       round(lag*100, 1),
		MeteoPct:     round(meteo*100, 1),
		CalendarPct:  round((1-lag-meteo)*100, 1),
		LagDominated: lag > lagDominanceShare,
	}
	if a.LagDominated {
		t.logger.Warn("Lag features dominate pollutant model; accuracy degrades without live data",
			zap.Float64("lag_pct", a.LagPct))
	} else {
		t.logger.Info("Feature balance",
			zap.Float64("lag_pct", a.LagPct),
			zap.Float64("meteo_pct", a.MeteoPct),
			zap.Float64("calendar_pct", a.CalendarPct))
	}
	return a
}

func summarizeFolds(scores []float64) (mean, std float64, folds []float64) {
	if len(scores) == 0 {
		return 0, 0, nil
	}
	mean, std = stat.PopMeanStdDev(scores, nil)
	folds = make([]float64, len(scores))
	for i, s := range scores {
		folds[i] = round(s, 4)
	}
	return round(mean, 4), round(std, 4), folds
}

func importanceMap(values []float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	for i, v := range values {
		out[features.Names[i]] = round(v, 4)
	}
	return out
}

func round(v float64, places int) float64 {
	if !utils.IsFinite(v) {
		return 0
	}
	return utils.RoundTo(v, places)
}
