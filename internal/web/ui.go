package web

import (
	"fmt"
	"net/http"
	"strings"
)

// handleUI serves the embedded UI.
func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	page := strings.ReplaceAll(uiHTML, "{{APP_VERSION}}", s.version)
	demo := "false"
	if s.demoMode {
		demo = "true"
	}
	fmt.Fprint(w, strings.ReplaceAll(page, "{{DEMO_MODE}}", demo))
}

const uiHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>VitalVest</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    background: #0f1419;
    color: #e4e4e7;
    min-height: 100vh;
  }
  .container { max-width: 1200px; margin: 0 auto; padding: 24px; }

  .header {
    display: flex;
    justify-content: space-between;
    align-items: center;
    margin-bottom: 24px;
    padding-bottom: 16px;
    border-bottom: 1px solid #2b3540;
  }
  .header h1 { font-size: 20px; font-weight: 700; color: #fff; }
  .header h1 span { color: #2dd4bf; }
  .header .meta { display: flex; align-items: center; gap: 16px; font-size: 12px; color: #71717a; }
  .header a { color: #71717a; text-decoration: none; }
  .header a:hover { color: #e4e4e7; }

  .statusbar { display: flex; gap: 12px; margin-bottom: 24px; flex-wrap: wrap; }
  .pill {
    display: inline-flex;
    align-items: center;
    gap: 7px;
    background: #1a2129;
    border: 1px solid #2b3540;
    border-radius: 999px;
    padding: 6px 14px;
    font-size: 12px;
    color: #a1a1aa;
  }
  .dot { width: 8px; height: 8px; border-radius: 50%; background: #52525b; }
  .dot.ok { background: #34d399; }
  .dot.warn { background: #fbbf24; }
  .dot.bad { background: #f87171; }

  .tabs { display: flex; gap: 4px; margin-bottom: 24px; border-bottom: 1px solid #2b3540; }
  .tab {
    background: none;
    border: none;
    color: #71717a;
    font-size: 13px;
    font-weight: 600;
    padding: 10px 16px;
    cursor: pointer;
    border-bottom: 2px solid transparent;
  }
  .tab:hover { color: #e4e4e7; }
  .tab.active { color: #2dd4bf; border-bottom-color: #2dd4bf; }
  .page { display: none; }
  .page.visible { display: block; }

  .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(260px, 1fr)); gap: 16px; }
  .card {
    background: #1a2129;
    border: 1px solid #2b3540;
    border-radius: 12px;
    padding: 18px;
  }
  .card h3 {
    font-size: 11px;
    font-weight: 600;
    text-transform: uppercase;
    letter-spacing: 0.6px;
    color: #71717a;
    margin-bottom: 12px;
  }
  .reading { display: flex; align-items: baseline; gap: 6px; margin-bottom: 8px; }
  .reading .value { font-size: 26px; font-weight: 700; color: #fff; }
  .reading .unit { font-size: 12px; color: #71717a; }
  .reading .label { font-size: 12px; color: #a1a1aa; margin-left: auto; }
  .subrow { display: flex; justify-content: space-between; font-size: 12px; color: #a1a1aa; padding: 3px 0; }
  .subrow .v { color: #e4e4e7; font-variant-numeric: tabular-nums; }
  .stale { opacity: 0.45; }

  .statrow { display: flex; justify-content: space-between; font-size: 11px; color: #52525b; margin-top: 10px; }

  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th {
    text-align: left;
    font-size: 11px;
    text-transform: uppercase;
    letter-spacing: 0.6px;
    color: #71717a;
    padding: 8px 12px;
    border-bottom: 1px solid #2b3540;
  }
  td { padding: 9px 12px; border-bottom: 1px solid #1f2831; color: #d4d4d8; font-variant-numeric: tabular-nums; }

  .alert { display: flex; align-items: center; gap: 10px; padding: 12px 16px; border-radius: 10px; margin-bottom: 10px; font-size: 13px; }
  .alert.warning { background: rgba(251, 191, 36, 0.08); border: 1px solid rgba(251, 191, 36, 0.3); color: #fbbf24; }
  .alert.critical { background: rgba(248, 113, 113, 0.08); border: 1px solid rgba(248, 113, 113, 0.3); color: #f87171; }
  .empty { color: #52525b; font-size: 13px; padding: 24px 0; text-align: center; }

  .cfgrow { display: flex; align-items: center; justify-content: space-between; padding: 14px 0; border-bottom: 1px solid #1f2831; }
  .cfgrow .name { font-size: 14px; color: #e4e4e7; }
  .cfgrow .desc { font-size: 12px; color: #71717a; margin-top: 2px; }
  .btn {
    background: #2b3540;
    border: none;
    border-radius: 8px;
    color: #e4e4e7;
    font-size: 12px;
    font-weight: 600;
    padding: 8px 14px;
    cursor: pointer;
  }
  .btn:hover { background: #3b4754; }
  .btn.primary { background: #2dd4bf; color: #0f1419; }
  .btn.primary:hover { background: #5eead4; }
  input[type=number] {
    background: #0f1419;
    border: 1px solid #2b3540;
    border-radius: 8px;
    color: #e4e4e7;
    font-size: 12px;
    padding: 7px 10px;
    width: 90px;
  }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Vital<span>Vest</span></h1>
    <div class="meta">
      <span id="demo-badge" style="display:none;color:#fbbf24">DEMO</span>
      <span>v{{APP_VERSION}}</span>
      <a href="/logout">Salir</a>
    </div>
  </div>

  <div class="statusbar">
    <span class="pill"><span class="dot" id="dot-link"></span><span id="txt-link">Worker</span></span>
    <span class="pill"><span class="dot" id="dot-ws"></span><span id="txt-ws">Stream</span></span>
    <span class="pill"><span class="dot" id="dot-poll"></span><span id="txt-poll">Polling</span></span>
    <span class="pill">Actualizado: <span id="txt-updated" style="margin-left:4px">&mdash;</span></span>
  </div>

  <div class="tabs">
    <button class="tab active" data-page="dashboard">Dashboard</button>
    <button class="tab" data-page="sessions">Sesiones</button>
    <button class="tab" data-page="alerts">Alertas</button>
    <button class="tab" data-page="config">Configuraci&oacute;n</button>
  </div>

  <div class="page visible" id="page-dashboard">
    <div class="grid">
      <div class="card" id="card-bme">
        <h3>Ambiente &middot; BME280</h3>
        <div class="reading"><span class="value" id="v-temp">&mdash;</span><span class="unit">&deg;C</span><span class="label">Temperatura</span></div>
        <div class="subrow"><span>Humedad</span><span class="v" id="v-hum">&mdash;</span></div>
        <div class="subrow"><span>Presi&oacute;n</span><span class="v" id="v-pres">&mdash;</span></div>
        <div class="statrow"><span id="st-temp"></span></div>
      </div>
      <div class="card" id="card-mlx">
        <h3>Temperatura corporal &middot; MLX90614</h3>
        <div class="reading"><span class="value" id="v-tobj">&mdash;</span><span class="unit">&deg;C</span><span class="label">Corporal</span></div>
        <div class="subrow"><span>Ambiente sensor</span><span class="v" id="v-tamb">&mdash;</span></div>
        <div class="statrow"><span id="st-tobj"></span></div>
      </div>
      <div class="card" id="card-gsr">
        <h3>Hidrataci&oacute;n &middot; GSR</h3>
        <div class="reading"><span class="value" id="v-hyd">&mdash;</span><span class="unit">%</span><span class="label" id="v-hydstate"></span></div>
        <div class="subrow"><span>Conductancia</span><span class="v" id="v-cond">&mdash;</span></div>
        <div class="statrow"><span id="st-hyd"></span></div>
      </div>
      <div class="card" id="card-mpu">
        <h3>Movimiento &middot; MPU6050</h3>
        <div class="subrow"><span>Aceleraci&oacute;n</span><span class="v" id="v-acc">&mdash;</span></div>
        <div class="subrow"><span>Giroscopio</span><span class="v" id="v-gyro">&mdash;</span></div>
      </div>
    </div>
  </div>

  <div class="page" id="page-sessions">
    <div class="card">
      <h3>Sesiones de monitoreo (por hora)</h3>
      <table>
        <thead><tr><th>Hora</th><th>Lecturas</th><th>Temp. ambiente media</th><th>Temp. corporal media</th><th>Hidrataci&oacute;n media</th></tr></thead>
        <tbody id="sessions-body"></tbody>
      </table>
      <div class="empty" id="sessions-empty">Sin datos registrados</div>
    </div>
  </div>

  <div class="page" id="page-alerts">
    <div id="alerts-list"></div>
    <div class="empty" id="alerts-empty">Sin alertas activas</div>
  </div>

  <div class="page" id="page-config">
    <div class="card">
      <div class="cfgrow">
        <div>
          <div class="name">Stream en tiempo real</div>
          <div class="desc">Conexi&oacute;n WebSocket al chaleco</div>
        </div>
        <div>
          <button class="btn primary" id="btn-ws-start">Iniciar</button>
          <button class="btn" id="btn-ws-stop">Detener</button>
        </div>
      </div>
      <div class="cfgrow">
        <div>
          <div class="name">Sondeo REST</div>
          <div class="desc">Hist&oacute;rico y agregados peri&oacute;dicos</div>
        </div>
        <div>
          <input type="number" id="poll-interval" min="1000" step="500" value="5000"> ms
          <button class="btn primary" id="btn-poll-start">Iniciar</button>
          <button class="btn" id="btn-poll-stop">Detener</button>
        </div>
      </div>
      <div class="cfgrow">
        <div>
          <div class="name">Reconectar</div>
          <div class="desc">Fuerza un ciclo de reconexi&oacute;n del stream</div>
        </div>
        <button class="btn" id="btn-reconnect">Reconectar ahora</button>
      </div>
      <div class="cfgrow">
        <div>
          <div class="name">Sincronizar</div>
          <div class="desc">Env&iacute;a la &uacute;ltima lectura al backend</div>
        </div>
        <button class="btn" id="btn-sync">Sincronizar</button>
      </div>
    </div>
  </div>
</div>

<script>
(function () {
  'use strict';

  var DEMO = {{DEMO_MODE}};

  // Tab-side connection lifecycle. Each dashboard tab owns exactly one
  // socket to the daemon; the daemon owns the single upstream connection.
  var STATES = { UNINITIALIZED: 0, CONNECTING: 1, ACTIVE: 2, CLOSED: 3 };
  var tabState = STATES.UNINITIALIZED;
  var sock = null;
  var pingTimer = null;
  var retryDelay = 1000;

  function connect() {
    tabState = STATES.CONNECTING;
    setDot('dot-link', 'warn');
    var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    sock = new WebSocket(proto + location.host + '/ws');

    sock.onopen = function () {
      tabState = STATES.ACTIVE;
      retryDelay = 1000;
      setDot('dot-link', 'ok');
      send({ type: 'GET_STATE' });
      send({ type: 'START_WEBSOCKET' });
      send({ type: 'START_API_POLLING', interval: pollIntervalMs() });
      pingTimer = setInterval(function () { send({ type: 'PING' }); }, 30000);
    };

    sock.onmessage = function (ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      handle(msg);
    };

    sock.onclose = function () {
      tabState = STATES.CLOSED;
      setDot('dot-link', 'bad');
      if (pingTimer) { clearInterval(pingTimer); pingTimer = null; }
      setTimeout(connect, retryDelay);
      retryDelay = Math.min(retryDelay * 2, 15000);
    };
  }

  function send(cmd) {
    if (tabState === STATES.ACTIVE && sock && sock.readyState === WebSocket.OPEN) {
      sock.send(JSON.stringify(cmd));
    }
  }

  function handle(msg) {
    switch (msg.type) {
      case 'WORKER_READY':
      case 'STATE_UPDATE':
        applyState(msg.state);
        break;
      case 'WS_STATUS':
        setDot('dot-ws', msg.connected ? 'ok' : 'bad');
        break;
      case 'WS_DATA':
      case 'API_DATA':
        render(msg.data, msg.stats || null, msg.timestamp);
        refreshAlerts();
        break;
      case 'WS_ERROR':
        setDot('dot-ws', 'bad');
        console.warn('stream:', msg.error);
        break;
      case 'API_ERROR':
        setDot('dot-poll', 'bad');
        console.warn('polling:', msg.error);
        break;
      case 'PONG':
        break;
    }
  }

  function applyState(st) {
    if (!st) return;
    setDot('dot-ws', st.socketStatus === 'connected' ? 'ok' : (st.socketStatus === 'connecting' ? 'warn' : 'bad'));
    setDot('dot-poll', st.pollingActive ? 'ok' : '');
    if (st.latestReading) render(st.latestReading, null, st.lastUpdateTimestamp);
    if (st.demoMode || DEMO) document.getElementById('demo-badge').style.display = 'inline';
  }

  var fmt = function (v, dec) {
    if (v === null || v === undefined) return '\u2014';
    return Number(v).toFixed(dec === undefined ? 1 : dec);
  };

  function render(d, stats, ts) {
    if (!d) return;
    text('v-temp', fmt(d.ambient.temperature));
    text('v-hum', fmt(d.ambient.humidity) + ' %');
    text('v-pres', fmt(d.ambient.pressure) + ' hPa');
    text('v-tobj', fmt(d.body.objectTemperature));
    text('v-tamb', fmt(d.body.ambientTemperature) + ' °C');
    text('v-hyd', fmt(d.hydration.percentage, 0));
    text('v-hydstate', d.hydration.state || '');
    text('v-cond', fmt(d.hydration.conductance, 2) + ' µS');
    text('v-acc', vec(d.motion.acceleration));
    text('v-gyro', vec(d.motion.gyroscope));
    if (ts) text('txt-updated', new Date(ts).toLocaleTimeString());
    if (stats) {
      stat('st-temp', stats['ambient.temperature'], '°C');
      stat('st-tobj', stats['body.objectTemperature'], '°C');
      stat('st-hyd', stats['hydration.percentage'], '%');
      setDot('dot-poll', 'ok');
    }
  }

  function vec(v) {
    if (!v || v.x === null || v.x === undefined) return '\u2014';
    return fmt(v.x, 2) + ' / ' + fmt(v.y, 2) + ' / ' + fmt(v.z, 2);
  }

  function stat(id, s, unit) {
    if (!s) { text(id, ''); return; }
    text(id, 'min ' + fmt(s.min) + ' · max ' + fmt(s.max) + ' · med ' + fmt(s.avg) + ' ' + unit);
  }

  function text(id, v) { document.getElementById(id).textContent = v; }
  function setDot(id, cls) { document.getElementById(id).className = 'dot' + (cls ? ' ' + cls : ''); }
  function pollIntervalMs() {
    var v = parseInt(document.getElementById('poll-interval').value, 10);
    return isNaN(v) ? 5000 : v;
  }

  // ---- secondary pages, plain REST ----

  function refreshSessions() {
    fetch('/api/sessions').then(function (r) { return r.json(); }).then(function (rows) {
      var body = document.getElementById('sessions-body');
      body.innerHTML = '';
      document.getElementById('sessions-empty').style.display = rows.length ? 'none' : 'block';
      rows.forEach(function (s) {
        var tr = document.createElement('tr');
        [new Date(s.hour).toLocaleString(), s.count, fmt(s.avgAmbientTemp), fmt(s.avgBodyTemp), fmt(s.avgHydrationPct, 0)].forEach(function (c) {
          var td = document.createElement('td');
          td.textContent = c === null || c === undefined ? '\u2014' : c;
          tr.appendChild(td);
        });
        body.appendChild(tr);
      });
    }).catch(function () {});
  }

  function refreshAlerts() {
    fetch('/api/alerts').then(function (r) { return r.json(); }).then(function (alerts) {
      var list = document.getElementById('alerts-list');
      list.innerHTML = '';
      document.getElementById('alerts-empty').style.display = alerts.length ? 'none' : 'block';
      alerts.forEach(function (a) {
        var div = document.createElement('div');
        div.className = 'alert ' + a.level;
        div.textContent = a.message + ' (' + a.sensor + ')';
        list.appendChild(div);
      });
    }).catch(function () {});
  }

  // ---- wiring ----

  document.querySelectorAll('.tab').forEach(function (t) {
    t.addEventListener('click', function () {
      document.querySelectorAll('.tab').forEach(function (x) { x.classList.remove('active'); });
      document.querySelectorAll('.page').forEach(function (x) { x.classList.remove('visible'); });
      t.classList.add('active');
      document.getElementById('page-' + t.dataset.page).classList.add('visible');
      if (t.dataset.page === 'sessions') refreshSessions();
      if (t.dataset.page === 'alerts') refreshAlerts();
    });
  });

  document.getElementById('btn-ws-start').addEventListener('click', function () { send({ type: 'START_WEBSOCKET' }); });
  document.getElementById('btn-ws-stop').addEventListener('click', function () { send({ type: 'STOP_WEBSOCKET' }); });
  document.getElementById('btn-poll-start').addEventListener('click', function () { send({ type: 'START_API_POLLING', interval: pollIntervalMs() }); });
  document.getElementById('btn-poll-stop').addEventListener('click', function () { send({ type: 'STOP_API_POLLING' }); });
  document.getElementById('btn-reconnect').addEventListener('click', function () {
    fetch('/api/reconnect', { method: 'POST' }).catch(function () {});
  });
  document.getElementById('btn-sync').addEventListener('click', function () {
    fetch('/api/sync', { method: 'POST' }).catch(function () {});
  });

  connect();
})();
</script>
</body>
</html>`
