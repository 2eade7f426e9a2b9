package livemetro

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultRealtimeBaseURL = "http://swopenapi.seoul.go.kr/api/subway"
	defaultStationBaseURL  = "http://openapi.seoul.go.kr:8088"

	// seoulNoData is the upstream's "no rows" code; it is a valid empty
	// result, not a failure.
	seoulNoData = "INFO-200"

	probeStation = "서울"
)

// SeoulLiveSource fetches realtime arrivals and station metadata from the
// Seoul open transit API. It implements LiveSource and StationSource.
type SeoulLiveSource struct {
	apiKey          string
	realtimeBaseURL string
	stationBaseURL  string
	client          *http.Client
}

// SeoulOption configures a SeoulLiveSource.
type SeoulOption func(*SeoulLiveSource)

// WithHTTPClient overrides the HTTP client, e.g. to tune timeouts or to
// point tests at a local server.
func WithHTTPClient(c *http.Client) SeoulOption {
	return func(s *SeoulLiveSource) {
		s.client = c
	}
}

// WithRealtimeBaseURL overrides the realtime arrival endpoint base.
func WithRealtimeBaseURL(base string) SeoulOption {
	return func(s *SeoulLiveSource) {
		s.realtimeBaseURL = base
	}
}

// WithStationBaseURL overrides the station search endpoint base.
func WithStationBaseURL(base string) SeoulOption {
	return func(s *SeoulLiveSource) {
		s.stationBaseURL = base
	}
}

func NewSeoulLiveSource(apiKey string, opts ...SeoulOption) *SeoulLiveSource {
	s := &SeoulLiveSource{
		apiKey:          apiKey,
		realtimeBaseURL: defaultRealtimeBaseURL,
		stationBaseURL:  defaultStationBaseURL,
		client:          &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type seoulErrorMessage struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type seoulArrivalRow struct {
	TrainNo     string `json:"btrainNo"`
	LineName    string `json:"trainLineNm"`
	Destination string `json:"bstatnNm"`
	Direction   string `json:"updnLine"`
	ETA         string `json:"barvlDt"`
	Message     string `json:"arvlMsg2"`
	ReceivedAt  string `json:"recptnDt"`
}

type seoulArrivalResponse struct {
	ErrorMessage seoulErrorMessage `json:"errorMessage"`
	Rows         []seoulArrivalRow `json:"realtimeArrivalList"`
}

// FetchArrivals returns the upcoming trains for one station. An upstream
// "no data" response yields an empty slice.
func (s *SeoulLiveSource) FetchArrivals(ctx context.Context, station string) ([]TrainArrival, error) {
	u := fmt.Sprintf("%s/%s/json/realtimeStationArrival/0/50/%s",
		s.realtimeBaseURL, url.PathEscape(s.apiKey), url.PathEscape(station))

	var resp seoulArrivalResponse
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	if resp.ErrorMessage.Code == seoulNoData {
		return []TrainArrival{}, nil
	}
	if resp.ErrorMessage.Status != 0 && resp.ErrorMessage.Status != http.StatusOK {
		return nil, errors.Errorf("upstream error %s: %s", resp.ErrorMessage.Code, resp.ErrorMessage.Message)
	}

	now := time.Now()
	trains := make([]TrainArrival, 0, len(resp.Rows))

	for _, row := range resp.Rows {
		eta, _ := strconv.Atoi(row.ETA)
		trains = append(trains, TrainArrival{
			TrainNo:        row.TrainNo,
			LineName:       row.LineName,
			Destination:    row.Destination,
			Direction:      row.Direction,
			ETASeconds:     eta,
			ArrivalMessage: row.Message,
			UpdatedAt:      now,
		})
	}

	return trains, nil
}

type seoulStationRow struct {
	StationCode string `json:"STATION_CD"`
	StationName string `json:"STATION_NM"`
	LineNumber  string `json:"LINE_NUM"`
	ForeignCode string `json:"FR_CODE"`
}

type seoulStationResponse struct {
	Service struct {
		Rows []seoulStationRow `json:"row"`
	} `json:"SearchInfoBySubwayNameService"`
}

// FetchStation looks up station metadata by name. Returns (nil, nil) when
// the name is unknown upstream. A station served by several lines is
// reported once, with the extra lines as transfers.
func (s *SeoulLiveSource) FetchStation(ctx context.Context, name string) (*Station, error) {
	u := fmt.Sprintf("%s/%s/json/SearchInfoBySubwayNameService/1/5/%s",
		s.stationBaseURL, url.PathEscape(s.apiKey), url.PathEscape(name))

	var resp seoulStationResponse
	if err := s.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	rows := resp.Service.Rows
	if len(rows) == 0 {
		return nil, nil
	}

	st := &Station{
		ID:           rows[0].StationCode,
		Name:         rows[0].StationName,
		Line:         rows[0].LineNumber,
		ExternalCode: rows[0].ForeignCode,
	}

	for _, row := range rows[1:] {
		st.Transfers = append(st.Transfers, row.LineNumber)
	}

	return st, nil
}

// Ping probes connectivity with a minimal arrival request for a fixed
// station, discarding the payload.
func (s *SeoulLiveSource) Ping(ctx context.Context) error {
	u := fmt.Sprintf("%s/%s/json/realtimeStationArrival/0/1/%s",
		s.realtimeBaseURL, url.PathEscape(s.apiKey), url.PathEscape(probeStation))

	var resp seoulArrivalResponse
	return s.getJSON(ctx, u, &resp)
}

func (s *SeoulLiveSource) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.WithStack(err)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return errors.Errorf("unexpected status %d from %s", res.StatusCode, res.Request.URL.Host)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}

	return nil
}
