package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FolioSim/internal/domain/models"
	"FolioSim/internal/engine"
	"FolioSim/internal/usecase"
	xlogger "FolioSim/pkg/logger"
)

// genericFrame covers every frame shape the stream emits.
type genericFrame struct {
	Type      string                     `json:"type"`
	Completed int                        `json:"completed"`
	Total     int                        `json:"total"`
	Message   string                     `json:"message"`
	Details   interface{}                `json:"details"`
	Result    *models.SimulationResponse `json:"result"`
}

func newStreamServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)

	simUC := usecase.NewSimulateUseCase(engine.NewOrchestrator(), &stubHistory{}, stubSink{}, stubMetrics{}, logger)
	h := NewStreamHandler(logger, simUC)

	e := echo.New()
	h.RegisterRoutes(e)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/simulate/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	return conn
}

func TestStreamDeliversProgressAndResult(t *testing.T) {
	srv := newStreamServer(t)
	conn := dialStream(t, srv)

	seed := int64(7)
	req := &models.SimulationRequest{
		InitialInvestment: 100_000,
		TimeHorizon:       2,
		NumSimulations:    5_000,
		AssetClasses: []models.AssetClass{
			{Name: "Stocks", Allocation: 1.0, MedianReturn: 0.08, StdDeviation: 0.15, MinReturn: -0.40, MaxReturn: 0.35},
		},
		TaxSettings:      models.TaxSettings{AccountType: models.AccountTaxable},
		RandomSeed:       &seed,
		TrajectorySample: 5,
	}
	require.NoError(t, conn.WriteJSON(req))

	var lastProgress genericFrame
	var result *models.SimulationResponse
	for result == nil {
		var frame genericFrame
		require.NoError(t, conn.ReadJSON(&frame))

		switch frame.Type {
		case "progress":
			assert.GreaterOrEqual(t, frame.Completed, lastProgress.Completed, "progress counts never regress")
			assert.LessOrEqual(t, frame.Completed, frame.Total)
			lastProgress = frame
		case "result":
			result = frame.Result
		case "error":
			t.Fatalf("unexpected error frame: %s", frame.Message)
		default:
			t.Fatalf("unknown frame type %q", frame.Type)
		}
	}

	assert.Equal(t, req.NumSimulations, lastProgress.Completed, "final progress frame reports completion")
	assert.Equal(t, req.NumSimulations, lastProgress.Total)

	require.NotNil(t, result.Statistics)
	assert.Equal(t, int64(7), result.Seed)
	assert.Len(t, result.TrajectorySample, 5)
}

func TestStreamRejectsInvalidFrames(t *testing.T) {
	srv := newStreamServer(t)

	t.Run("malformed json", func(t *testing.T) {
		conn := dialStream(t, srv)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

		var frame genericFrame
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, "error", frame.Type)
		assert.Contains(t, frame.Message, "invalid request frame")
	})

	t.Run("tag violation", func(t *testing.T) {
		conn := dialStream(t, srv)
		req := &models.SimulationRequest{
			InitialInvestment: 100_000,
			TimeHorizon:       2,
			NumSimulations:    100,
			AssetClasses: []models.AssetClass{
				{Name: "Stocks", Allocation: 1.0, MedianReturn: 0.08, StdDeviation: 0.15, MinReturn: -0.40, MaxReturn: 0.35},
			},
		}
		require.NoError(t, conn.WriteJSON(req))

		var frame genericFrame
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, "error", frame.Type)
		assert.Equal(t, "request validation failed", frame.Message)
		assert.NotNil(t, frame.Details)
	})
}

func TestStreamRequiresUpgrade(t *testing.T) {
	srv := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/api/simulate/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
