package proxy

// controlPage 内置控制页，键盘与手柄输入经 WebSocket 发往 /control
const controlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>wifibridge</title>
<style>
  body { margin: 0; background: #111; color: #ddd; font-family: sans-serif; display: flex; flex-direction: column; align-items: center; }
  h1 { font-size: 1.1em; margin: 12px 0 8px; }
  #video { max-width: 100%; background: #000; min-height: 240px; }
  #status { margin: 8px; font-size: 0.85em; color: #888; }
  #status.ok { color: #6c6; }
  #status.err { color: #c66; }
  .hint { font-size: 0.8em; color: #666; margin-bottom: 12px; }
</style>
</head>
<body>
<h1>wifibridge</h1>
<img id="video" src="/stream" alt="stream">
<div id="status">connecting...</div>
<div class="hint">WASD / arrows to move, space to stop, X sit, Z stand, G greet. Gamepad supported.</div>
<script>
(function () {
  var status = document.getElementById('status');
  var ws = null;
  var buttonNames = ['a', 'b', 'x', 'y'];
  var buttonState = {};

  function setStatus(text, cls) {
    status.textContent = text;
    status.className = cls || '';
  }

  function send(ev) {
    if (ws && ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify(ev));
    }
  }

  function connect() {
    var scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
    ws = new WebSocket(scheme + location.host + '/control');
    ws.onopen = function () { setStatus('connected', 'ok'); };
    ws.onclose = function () {
      setStatus('disconnected, retrying...', 'err');
      setTimeout(connect, 1000);
    };
    ws.onerror = function () { ws.close(); };
  }

  document.addEventListener('keydown', function (e) {
    if (e.repeat) return;
    send({ type: 'keydown', key: e.key });
  });
  document.addEventListener('keyup', function (e) {
    send({ type: 'keyup', key: e.key });
  });

  function pollGamepad() {
    var pads = navigator.getGamepads ? navigator.getGamepads() : [];
    var pad = null;
    for (var i = 0; i < pads.length; i++) {
      if (pads[i]) { pad = pads[i]; break; }
    }
    if (pad) {
      send({ type: 'axis', axis: 'x', value: pad.axes[0] || 0 });
      send({ type: 'axis', axis: 'y', value: -(pad.axes[1] || 0) });
      for (var b = 0; b < buttonNames.length && b < pad.buttons.length; b++) {
        var pressed = pad.buttons[b].pressed;
        if (pressed && !buttonState[b]) {
          send({ type: 'button', button: buttonNames[b] });
        }
        buttonState[b] = pressed;
      }
    }
    requestAnimationFrame(pollGamepad);
  }

  connect();
  requestAnimationFrame(pollGamepad);
})();
</script>
</body>
</html>
`
