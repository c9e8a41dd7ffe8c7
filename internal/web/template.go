package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/htbalar/vehicle-safety/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"lockOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"list": func(items []string) string {
		if len(items) == 0 {
			return "none"
		}
		return strings.Join(items, ", ")
	},
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Vehicle Safety</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.alert { color: red; font-weight: bold; }
.ok { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Vehicle Safety</h1>

<h2>Vehicle</h2>
<table>
<tr><th>Speed</th><td>{{if .Vehicle.SpeedKnown}}{{printf "%.1f" .Vehicle.SpeedKph}} km/h{{if .Vehicle.Moving}} (moving){{end}}{{else}}<span class="unknown">unknown</span>{{end}}</td></tr>
<tr><th>Doors</th><td id="lock-state">{{lockOrUnknown (printf "%s" .Vehicle.Lock)}}{{if .Vehicle.PendingLock}} (lock pending){{end}}</td></tr>
<tr><th>Auto lock</th><td>{{onOff .Vehicle.AutoLock}}</td></tr>
<tr><th>Child mode</th><td>{{onOff .Vehicle.ChildMode}}</td></tr>
</table>

<h2>Alerts</h2>
<table>
<tr><th>Seatbelt</th><td class="{{if .Vehicle.SeatbeltAlert}}alert{{else}}ok{{end}}">{{if .Vehicle.SeatbeltAlert}}active{{else}}clear{{end}}</td></tr>
<tr><th>Unfastened</th><td>{{list .Vehicle.UnfastenedBelts}}</td></tr>
<tr><th>Door</th><td class="{{if .Vehicle.DoorAlert}}alert{{else}}ok{{end}}">{{if .Vehicle.DoorAlert}}active{{else}}clear{{end}}</td></tr>
<tr><th>Open</th><td>{{list .Vehicle.OpenDoors}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>GPIO lines</th><td>{{.GPIOLines}}</td></tr>
</table>

<h2>Published</h2>
<table>
{{range $kind, $n := .Counts}}<tr><th>{{$kind}}</th><td>{{$n}}</td></tr>
{{else}}<tr><th>nothing yet</th><td></td></tr>
{{end}}</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Alert threshold</th><td>{{.Config.ThresholdKph}} km/h</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceCount}}</td></tr>
<tr><th>Lock band</th><td>{{.Config.UnlockBelowKph}} / {{.Config.LockAboveKph}} km/h</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/events.json">Events</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
