package dashboard

// indexHTML is the dashboard page, served from memory so the daemon
// has no runtime file dependencies. Charts are seeded from /api/log
// and then follow the 5 second /api/data poll.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Vazduh Dashboard</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <style>
    :root { --bg: #0f0f1a; --card: #1a1a2e; --card2: #16213e; --text: #eee; --accent: #0f3460; --good: #4ade80; --warn: #fbbf24; --bad: #f87171; --blue: #60a5fa; }
    * { box-sizing: border-box; margin: 0; padding: 0; }
    body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: var(--bg); color: var(--text); min-height: 100vh; padding: 15px; }
    .container { max-width: 1400px; margin: 0 auto; }
    header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px; flex-wrap: wrap; gap: 10px; }
    h1 { color: #fff; font-size: 1.6rem; }
    .time { color: #888; font-size: 0.9rem; }
    .alarm-badge { background: var(--bad); color: #fff; padding: 5px 12px; border-radius: 20px; font-size: 0.8rem; animation: pulse 1s infinite; }
    @keyframes pulse { 0%, 100% { opacity: 1; } 50% { opacity: 0.5; } }
    .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 12px; margin-bottom: 20px; }
    .card { background: var(--card); border-radius: 12px; padding: 16px; }
    .card.wide { grid-column: span 2; }
    .card.full { grid-column: 1 / -1; }
    .card h2 { font-size: 0.75rem; color: #888; margin-bottom: 8px; text-transform: uppercase; letter-spacing: 1px; }
    .value { font-size: 2rem; font-weight: bold; }
    .unit { font-size: 0.85rem; color: #888; }
    .status { display: inline-block; padding: 3px 10px; border-radius: 12px; font-size: 0.75rem; margin-top: 8px; }
    .good { background: var(--good); color: #000; }
    .warn { background: var(--warn); color: #000; }
    .bad { background: var(--bad); color: #000; }
    .chart-container { height: 200px; margin-top: 10px; }
    .stats-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(100px, 1fr)); gap: 8px; }
    .stat { background: var(--card2); padding: 12px; border-radius: 8px; text-align: center; }
    .stat-value { font-size: 1.2rem; font-weight: bold; color: var(--blue); }
    .stat-label { font-size: 0.7rem; color: #666; margin-top: 4px; }
    .tabs { display: flex; gap: 10px; margin-bottom: 15px; flex-wrap: wrap; }
    .tab { background: var(--card); padding: 8px 16px; border-radius: 8px; cursor: pointer; font-size: 0.85rem; border: none; color: #888; }
    .tab.active { background: var(--accent); color: #fff; }
    .panel { display: none; }
    .panel.active { display: block; }
    .footer { text-align: center; color: #444; font-size: 0.75rem; margin-top: 20px; }
    @media (max-width: 600px) { .value { font-size: 1.6rem; } .card.wide { grid-column: span 1; } }
  </style>
</head>
<body>
  <div class="container">
    <header>
      <h1>🌡️ Vazduh</h1>
      <div style="display:flex;align-items:center;gap:15px;">
        <span id="alarm-badge" class="alarm-badge" style="display:none;">⚠️ ALARM</span>
        <span class="time" id="time">--:--:--</span>
      </div>
    </header>

    <div class="tabs">
      <button class="tab active" onclick="showPanel('live')">Live Data</button>
      <button class="tab" onclick="showPanel('charts')">Charts</button>
      <button class="tab" onclick="showPanel('stats')">Statistics</button>
    </div>

    <div id="live" class="panel active">
      <div class="grid">
        <div class="card">
          <h2>PM2.5</h2>
          <span class="value" id="pm25">--</span><span class="unit">µg/m³</span>
          <div><span class="status" id="pm25-status">--</span></div>
        </div>
        <div class="card">
          <h2>PM10</h2>
          <span class="value" id="pm10">--</span><span class="unit">µg/m³</span>
          <div><span class="status" id="pm10-status">--</span></div>
        </div>
        <div class="card">
          <h2>PM1</h2>
          <span class="value" id="pm1">--</span><span class="unit">µg/m³</span>
        </div>
        <div class="card">
          <h2>Temperature</h2>
          <span class="value" id="temp">--</span><span class="unit">°C</span>
        </div>
        <div class="card">
          <h2>Humidity</h2>
          <span class="value" id="hum">--</span><span class="unit">%</span>
        </div>
        <div class="card">
          <h2>Pressure</h2>
          <span class="value" id="pres">--</span><span class="unit">hPa</span>
        </div>
        <div class="card">
          <h2>Sensors</h2>
          <span class="value" id="sensor-status" style="font-size:1.2rem;">--</span>
        </div>
        <div class="card wide">
          <h2>Air Quality Index</h2>
          <span class="value" id="aq">--</span>
          <div><span class="status" id="aq-status">--</span></div>
        </div>
      </div>
    </div>

    <div id="charts" class="panel">
      <div class="grid">
        <div class="card full">
          <h2>PM History (Last 20 readings)</h2>
          <div class="chart-container"><canvas id="pmChart"></canvas></div>
        </div>
        <div class="card full">
          <h2>Temperature & Humidity</h2>
          <div class="chart-container"><canvas id="envChart"></canvas></div>
        </div>
      </div>
    </div>

    <div id="stats" class="panel">
      <div class="card">
        <h2>System Statistics</h2>
        <div class="stats-grid">
          <div class="stat"><div class="stat-value" id="uptime">--</div><div class="stat-label">Uptime</div></div>
          <div class="stat"><div class="stat-value" id="cycles">--</div><div class="stat-label">Cycles</div></div>
          <div class="stat"><div class="stat-value" id="pms-fails">--</div><div class="stat-label">PMS Fails</div></div>
          <div class="stat"><div class="stat-value" id="bme-fails">--</div><div class="stat-label">BME Fails</div></div>
          <div class="stat"><div class="stat-value" id="frames">--</div><div class="stat-label">Frames</div></div>
          <div class="stat"><div class="stat-value" id="publishes">--</div><div class="stat-label">Publishes</div></div>
        </div>
      </div>
    </div>

    <div class="footer"><span id="device">vazduh</span> • Auto-refresh 5s • <a href="/metrics" style="color:#666;">Prometheus</a></div>
  </div>

  <script>
    let pmChart, envChart;
    const pmHistory = {labels:[], pm1:[], pm25:[], pm10:[]};
    const envHistory = {labels:[], temp:[], hum:[]};
    const maxPoints = 20;

    function initCharts() {
      const ctx1 = document.getElementById('pmChart').getContext('2d');
      pmChart = new Chart(ctx1, {
        type: 'line',
        data: {
          labels: pmHistory.labels,
          datasets: [
            {label: 'PM1', data: pmHistory.pm1, borderColor: '#60a5fa', tension: 0.3, fill: false},
            {label: 'PM2.5', data: pmHistory.pm25, borderColor: '#fbbf24', tension: 0.3, fill: false},
            {label: 'PM10', data: pmHistory.pm10, borderColor: '#f87171', tension: 0.3, fill: false}
          ]
        },
        options: {responsive: true, maintainAspectRatio: false, plugins: {legend: {labels: {color: '#888'}}}, scales: {x: {ticks: {color: '#666'}}, y: {ticks: {color: '#666'}, beginAtZero: true}}}
      });

      const ctx2 = document.getElementById('envChart').getContext('2d');
      envChart = new Chart(ctx2, {
        type: 'line',
        data: {
          labels: envHistory.labels,
          datasets: [
            {label: 'Temp °C', data: envHistory.temp, borderColor: '#f87171', tension: 0.3, yAxisID: 'y'},
            {label: 'Humidity %', data: envHistory.hum, borderColor: '#60a5fa', tension: 0.3, yAxisID: 'y1'}
          ]
        },
        options: {responsive: true, maintainAspectRatio: false, plugins: {legend: {labels: {color: '#888'}}}, scales: {x: {ticks: {color: '#666'}}, y: {type: 'linear', position: 'left', ticks: {color: '#f87171'}}, y1: {type: 'linear', position: 'right', ticks: {color: '#60a5fa'}, grid: {drawOnChartArea: false}}}}
      });
    }

    function showPanel(id) {
      document.querySelectorAll('.panel').forEach(p => p.classList.remove('active'));
      document.querySelectorAll('.tab').forEach(t => t.classList.remove('active'));
      document.getElementById(id).classList.add('active');
      event.target.classList.add('active');
    }

    function getStatus(pm, type) {
      const limits = type === 'pm25' ? [10, 25, 50] : [20, 40, 100];
      if (pm <= limits[0]) return {cls: 'good', txt: 'Excellent'};
      if (pm <= limits[1]) return {cls: 'warn', txt: 'Moderate'};
      return {cls: 'bad', txt: 'Poor'};
    }

    function updateTime() {
      document.getElementById('time').textContent = new Date().toLocaleTimeString();
    }

    function pushPoint(label, d) {
      pmHistory.labels.push(label); pmHistory.pm1.push(d.pm1); pmHistory.pm25.push(d.pm25); pmHistory.pm10.push(d.pm10);
      envHistory.labels.push(label); envHistory.temp.push(d.temp); envHistory.hum.push(d.hum);
      if (pmHistory.labels.length > maxPoints) {
        pmHistory.labels.shift(); pmHistory.pm1.shift(); pmHistory.pm25.shift(); pmHistory.pm10.shift();
        envHistory.labels.shift(); envHistory.temp.shift(); envHistory.hum.shift();
      }
    }

    function seedCharts() {
      fetch('/api/log').then(r => r.json()).then(entries => {
        (entries || []).slice(-maxPoints).forEach(e => {
          pushPoint(new Date(e.ts).toLocaleTimeString().slice(0,5), e);
        });
        if (pmChart) pmChart.update();
        if (envChart) envChart.update();
      }).catch(e => console.error(e));
    }

    function fetchData() {
      fetch('/api/data').then(r => r.json()).then(d => {
        document.getElementById('pm1').textContent = d.pm1 ?? '--';
        document.getElementById('pm25').textContent = d.pm25 ?? '--';
        document.getElementById('pm10').textContent = d.pm10 ?? '--';
        document.getElementById('temp').textContent = d.temp?.toFixed(1) ?? '--';
        document.getElementById('hum').textContent = d.hum?.toFixed(1) ?? '--';
        document.getElementById('pres').textContent = d.pres?.toFixed(1) ?? '--';
        document.getElementById('aq').textContent = d.aq ?? '--';
        document.getElementById('uptime').textContent = d.uptime ?? '--';

        const pm25s = getStatus(d.pm25, 'pm25');
        const pm10s = getStatus(d.pm10, 'pm10');
        document.getElementById('pm25-status').className = 'status ' + pm25s.cls;
        document.getElementById('pm25-status').textContent = pm25s.txt;
        document.getElementById('pm10-status').className = 'status ' + pm10s.cls;
        document.getElementById('pm10-status').textContent = pm10s.txt;
        document.getElementById('aq-status').className = 'status ' + pm10s.cls;
        document.getElementById('aq-status').textContent = d.aq;

        document.getElementById('alarm-badge').style.display = d.alarm ? 'block' : 'none';

        pushPoint(new Date().toLocaleTimeString().slice(0,5), d);
        if (pmChart) pmChart.update();
        if (envChart) envChart.update();
      }).catch(e => console.error(e));
    }

    function fetchStatus() {
      fetch('/api/status').then(r => r.json()).then(d => {
        document.getElementById('device').textContent = d.device;
        document.getElementById('sensor-status').textContent = d.status;
        document.getElementById('cycles').textContent = d.stats.cycles;
        document.getElementById('pms-fails').textContent = d.stats.particleFailures;
        document.getElementById('bme-fails').textContent = d.stats.envFailures;
        document.getElementById('frames').textContent = d.stats.frames;
        document.getElementById('publishes').textContent = d.stats.published;
      }).catch(e => console.error(e));
    }

    initCharts();
    updateTime();
    seedCharts();
    fetchData();
    fetchStatus();
    setInterval(updateTime, 1000);
    setInterval(fetchData, 5000);
    setInterval(fetchStatus, 5000);
  </script>
</body>
</html>
`
