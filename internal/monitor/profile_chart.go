package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/RobSmithDev/alienmotiontracker/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleProfileChart renders the most recent range profile as a line
// chart using go-echarts. This is a debugging-only endpoint (no auth)
// to eyeball the background subtraction without a client UI.
func (ws *WebServer) handleProfileChart(w http.ResponseWriter, r *http.Request) {
	profile := ws.pipe.LatestProfile()
	if profile == nil {
		httputil.NotFound(w, "no range profile available yet")
		return
	}

	ranges := make([]string, len(profile.Bins))
	subtracted := make([]opts.LineData, len(profile.Bins))
	raw := make([]opts.LineData, len(profile.Raw))
	background := make([]opts.LineData, len(profile.Background))
	for i := range profile.Bins {
		ranges[i] = fmt.Sprintf("%.2f", float64(i)*profile.BinWidthM)
		subtracted[i] = opts.LineData{Value: profile.Bins[i]}
	}
	for i := range profile.Raw {
		raw[i] = opts.LineData{Value: profile.Raw[i]}
	}
	for i := range profile.Background {
		background[i] = opts.LineData{Value: profile.Background[i]}
	}

	subtitle := fmt.Sprintf("seq=%d ts=%s bin=%.3fm warmup=%v",
		profile.Seq, profile.Timestamp.UTC().Format(time.RFC3339), profile.BinWidthM, profile.WarmingUp)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Range Profile", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Range Profile", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Range (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Magnitude", NameLocation: "middle", NameGap: 40}),
	)

	line.SetXAxis(ranges).
		AddSeries("raw", raw).
		AddSeries("background", background).
		AddSeries("subtracted", subtracted,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
