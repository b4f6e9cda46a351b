package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"fraudservice/internal/inference"
	"fraudservice/internal/metrics"
	"fraudservice/internal/model"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Predictor scores validated inputs against the loaded models.
type Predictor interface {
	PredictTabular(features []float64) (any, error)
	PredictNeural(data []float64) ([]float64, error)
	FeatureCount() int
	InputSize() int
}

type PredictHandler struct {
	predictor Predictor
	logger    *zap.Logger
}

func NewPredictHandler(predictor Predictor, logger *zap.Logger) *PredictHandler {
	return &PredictHandler{
		predictor: predictor,
		logger:    logger,
	}
}

func (h *PredictHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/", h.Index)
	app.Post("/predict/creditcard", h.PredictCreditCard)
	app.Post("/predict/fraud", h.PredictFraud)
}

func (h *PredictHandler) Index(c *fiber.Ctx) error {
	return c.SendString("Model API for Fraud and Credit Card Detection is running!")
}

func (h *PredictHandler) PredictCreditCard(c *fiber.Ctx) error {
	req, err := parsePredictionRequest(c.Body(), model.Tabular)
	if err == nil {
		err = req.Validate(h.predictor.InputSize(), h.predictor.FeatureCount())
	}
	if err != nil {
		return h.reject(c, model.Tabular, err)
	}

	start := time.Now()
	label, err := h.predictor.PredictTabular(req.Features)
	metrics.PredictionDuration.WithLabelValues(model.Tabular.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return h.fail(c, model.Tabular, err)
	}

	metrics.PredictionRequestsTotal.WithLabelValues(model.Tabular.String(), "success").Inc()
	h.logger.Info("Prediction served",
		zap.String("model", model.Tabular.String()),
		zap.Float64s("features", req.Features),
		zap.Any("prediction", label),
		zap.Duration("latency", time.Since(start)))

	return c.JSON(model.TabularResponse{Prediction: label})
}

func (h *PredictHandler) PredictFraud(c *fiber.Ctx) error {
	req, err := parsePredictionRequest(c.Body(), model.Neural)
	if err == nil {
		err = req.Validate(h.predictor.InputSize(), h.predictor.FeatureCount())
	}
	if err != nil {
		return h.reject(c, model.Neural, err)
	}

	start := time.Now()
	proba, err := h.predictor.PredictNeural(req.Data)
	metrics.PredictionDuration.WithLabelValues(model.Neural.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		return h.fail(c, model.Neural, err)
	}

	metrics.PredictionRequestsTotal.WithLabelValues(model.Neural.String(), "success").Inc()
	h.logger.Info("Prediction served",
		zap.String("model", model.Neural.String()),
		zap.Float64s("data", req.Data),
		zap.Float64s("probabilities", proba),
		zap.Duration("latency", time.Since(start)))

	return c.JSON(model.NeuralResponse{FraudPredictions: [][]float64{proba}})
}

func (h *PredictHandler) reject(c *fiber.Ctx, kind model.PredictionKind, err error) error {
	metrics.PredictionRequestsTotal.WithLabelValues(kind.String(), "rejected").Inc()
	h.logger.Info("Prediction request rejected",
		zap.String("model", kind.String()),
		zap.ByteString("request", c.Body()),
		zap.Error(err))

	return c.Status(fiber.StatusBadRequest).JSON(model.ErrorResponse{Error: err.Error()})
}

// fail maps scoring errors onto the response. Width mismatches that slip
// past validation are still the caller's fault.
func (h *PredictHandler) fail(c *fiber.Ctx, kind model.PredictionKind, err error) error {
	if errors.Is(err, inference.ErrFeatureCount) || errors.Is(err, inference.ErrInputSize) {
		return h.reject(c, kind, err)
	}

	metrics.PredictionRequestsTotal.WithLabelValues(kind.String(), "failed").Inc()
	h.logger.Error("Prediction failed",
		zap.String("model", kind.String()),
		zap.Error(err))

	return c.Status(fiber.StatusInternalServerError).JSON(model.ErrorResponse{Error: err.Error()})
}

type tabularBody struct {
	Features []any `json:"features"`
}

type neuralBody struct {
	Data []any `json:"data"`
}

// parsePredictionRequest decodes the body into the request variant for kind.
// Only the field that variant reads is checked; any other field is ignored.
func parsePredictionRequest(body []byte, kind model.PredictionKind) (model.PredictionRequest, error) {
	req := model.PredictionRequest{Kind: kind}
	malformed := &model.ValidationError{Reason: "request body must be a JSON object with a numeric array"}

	var err error
	switch kind {
	case model.Tabular:
		var raw tabularBody
		if jsonAPI.Unmarshal(body, &raw) != nil {
			return req, malformed
		}
		req.Features, err = toFloats("features", raw.Features)
	case model.Neural:
		var raw neuralBody
		if jsonAPI.Unmarshal(body, &raw) != nil {
			return req, malformed
		}
		req.Data, err = toFloats("data", raw.Data)
	}
	return req, err
}

func toFloats(field string, values []any) ([]float64, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := v.(float64)
		if !ok {
			return nil, &model.ValidationError{
				Field:  fmt.Sprintf("%s[%d]", field, i),
				Reason: "value is not a number",
			}
		}
		out[i] = f
	}
	return out, nil
}
