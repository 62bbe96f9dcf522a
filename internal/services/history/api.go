package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

type Sample struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

type queryParams struct {
	Field     string
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseQuery(r *http.Request) (queryParams, error) {
	q := r.URL.Query()
	get := func(k string, def, lo, hi int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return max(lo, min(hi, n))
			}
		}
		return def
	}
	p := queryParams{
		Field:     strings.TrimSpace(q.Get("field")),
		Minutes:   get("minutes", 60, 1, 31*24*60),
		Limit:     get("limit", 500, 1, 5000),
		TimeoutMS: get("timeout_ms", 2000, 200, 10000),
	}
	if p.Field == "" {
		p.Field = "power_watts"
	}
	if !slices.Contains(Fields, p.Field) {
		return p, fmt.Errorf("unknown field %q", p.Field)
	}
	return p, nil
}

func buildFlux(bucket string, p queryParams) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r._field == %q)
  |> keep(columns: ["_time","_value"])
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, p.Minutes, Measurement, p.Field, p.Limit)
}

// NewHistoryHandler serve GET /history?field=power_watts&minutes=60&limit=500,
// dal più recente. Se Influx fallisce ritorna una lista vuota con X-Error valorizzato.
func NewHistoryHandler(influx influxdb2.Client, org, bucket string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := parseQuery(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
		defer cancel()

		res, err := influx.QueryAPI(org).Query(ctx, buildFlux(bucket, p))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Error", "influx-query-error")
			_, _ = w.Write([]byte("[]"))
			return
		}
		defer res.Close()

		out := make([]Sample, 0, p.Limit)
		for res.Next() {
			rec := res.Record()
			v, ok := toFloat(rec.Value())
			if !ok {
				continue
			}
			out = append(out, Sample{Time: rec.Time().UTC().Format(time.RFC3339), Value: v})
		}
		if res.Err() != nil {
			w.Header().Set("X-Error", "influx-iter-error")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
