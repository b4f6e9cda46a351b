package handler

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fraudservice/internal/inference"
	"fraudservice/internal/model"
)

const testInputSize = 4

type stubForest struct{}

func (stubForest) FeatureCount() int { return 3 }

func (stubForest) Predict(features []float64) (any, error) {
	if features[0] > 0 {
		return float64(1), nil
	}
	return float64(0), nil
}

type stubNetwork struct{ panics bool }

func (n stubNetwork) InputSize() int { return testInputSize }

func (n stubNetwork) Forward(data []float64) ([]float64, error) {
	if n.panics {
		panic("index out of range")
	}
	return []float64{2, 0}, nil
}

func newPredictApp(t *testing.T, neural inference.NeuralModel) *fiber.App {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return newPredictAppWithLogger(t, neural, logger)
}

func newPredictAppWithLogger(t *testing.T, neural inference.NeuralModel, logger *zap.Logger) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(recover.New())
	NewPredictHandler(inference.NewRegistry(stubForest{}, neural), logger).RegisterRoutes(app)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func floats(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "0.5"
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestPredictHandler_Index(t *testing.T) {
	app := newPredictApp(t, stubNetwork{})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "Model API for Fraud and Credit Card Detection is running!", string(body))
}

func TestPredictHandler_CreditCard(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode int
		expected     any
	}{
		{name: "fraud", body: `{"features":[1,0,0]}`, expectedCode: 200, expected: float64(1)},
		{name: "legit", body: `{"features":[-1,0.5,2.25]}`, expectedCode: 200, expected: float64(0)},
		{name: "extra fields ignored", body: `{"features":[1,0,0],"data":"x"}`, expectedCode: 200, expected: float64(1)},
		{name: "too few features", body: `{"features":[1,0]}`, expectedCode: 400},
		{name: "too many features", body: `{"features":[1,0,0,0]}`, expectedCode: 400},
		{name: "non-numeric feature", body: `{"features":[1,"a",0]}`, expectedCode: 400},
		{name: "missing features", body: `{"data":[1,0,0]}`, expectedCode: 400},
		{name: "malformed body", body: `{"features":`, expectedCode: 400},
	}

	app := newPredictApp(t, stubNetwork{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := post(t, app, "/predict/creditcard", tt.body)

			assert.Equal(t, tt.expectedCode, code)
			if tt.expectedCode == 200 {
				assert.Equal(t, tt.expected, body["prediction"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestPredictHandler_Fraud(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{name: "exact width", body: `{"data":` + floats(testInputSize) + `}`, expectedCode: 200},
		{name: "one short", body: `{"data":` + floats(testInputSize-1) + `}`, expectedCode: 400},
		{name: "one over", body: `{"data":` + floats(testInputSize+1) + `}`, expectedCode: 400},
		{name: "non-numeric", body: `{"data":[0.5,true,0.5,0.5]}`, expectedCode: 400},
		{name: "overflowing magnitude", body: `{"data":[1e300,0.5,0.5,0.5]}`, expectedCode: 400},
		{name: "missing data", body: `{}`, expectedCode: 400},
	}

	app := newPredictApp(t, stubNetwork{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := post(t, app, "/predict/fraud", tt.body)

			require.Equal(t, tt.expectedCode, code)
			if tt.expectedCode != 200 {
				assert.NotEmpty(t, body["error"])
				return
			}

			rows, ok := body["fraud_predictions"].([]any)
			require.True(t, ok)
			require.Len(t, rows, 1)

			proba, ok := rows[0].([]any)
			require.True(t, ok)
			require.Len(t, proba, 2)

			var sum float64
			for _, p := range proba {
				sum += p.(float64)
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
			assert.Greater(t, proba[0].(float64), proba[1].(float64))
		})
	}
}

func TestPredictHandler_ModelPanicIsServerError(t *testing.T) {
	app := newPredictApp(t, stubNetwork{panics: true})

	code, body := post(t, app, "/predict/fraud", `{"data":`+floats(testInputSize)+`}`)

	assert.Equal(t, 500, code)
	assert.Contains(t, body["error"], "index out of range")

	// The process keeps serving after a failed prediction.
	code, _ = post(t, app, "/predict/creditcard", `{"features":[1,0,0]}`)
	assert.Equal(t, 200, code)
}

func TestErrorHandler_RecoveredPanic(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(recover.New())
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)

	var body model.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 500, resp.StatusCode)
	assert.Equal(t, "boom", body.Error)
}

func TestParsePredictionRequest(t *testing.T) {
	req, err := parsePredictionRequest([]byte(`{"features":[1,2.5,-3]}`), model.Tabular)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, req.Features)
	assert.Nil(t, req.Data)

	_, err = parsePredictionRequest([]byte(`{"data":[1,null]}`), model.Neural)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "data[1]", verr.Field)
}

func TestPredictHandler_LogsRequestAndResult(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := newPredictAppWithLogger(t, stubNetwork{}, zap.New(core))

	code, _ := post(t, app, "/predict/creditcard", `{"features":[7,8,9]}`)
	require.Equal(t, 200, code)
	code, _ = post(t, app, "/predict/fraud", `{"data":`+floats(testInputSize)+`}`)
	require.Equal(t, 200, code)

	served := logs.FilterMessage("Prediction served").All()
	require.Len(t, served, 2)

	tabular := served[0].ContextMap()
	assert.Equal(t, "creditcard", tabular["model"])
	assert.Equal(t, []interface{}{7.0, 8.0, 9.0}, tabular["features"])
	assert.Equal(t, float64(1), tabular["prediction"])

	neural := served[1].ContextMap()
	assert.Equal(t, "fraud", neural["model"])
	assert.Equal(t, []interface{}{0.5, 0.5, 0.5, 0.5}, neural["data"])
	assert.Len(t, neural["probabilities"], 2)
}

func TestPredictHandler_LogsRejectedRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	app := newPredictAppWithLogger(t, stubNetwork{}, zap.New(core))

	body := `{"features":[1,"a",0]}`
	code, _ := post(t, app, "/predict/creditcard", body)
	require.Equal(t, 400, code)

	rejected := logs.FilterMessage("Prediction request rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, body, rejected[0].ContextMap()["request"])
}
