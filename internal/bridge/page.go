package bridge

// indexPage is a bare-bones console for exercising the protocol from a
// browser. The real browser UI lives outside this repo; this page only
// mirrors lines in and out of the websocket.
const indexPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>labchat bridge</title>
<style>
body { font-family: monospace; margin: 1rem; }
#log { white-space: pre-wrap; border: 1px solid #999; height: 24rem; overflow-y: auto; padding: .5rem; }
#line { width: 100%; box-sizing: border-box; }
img.photo { max-width: 16rem; display: block; }
</style>
</head>
<body>
<div id="log"></div>
<input id="line" placeholder="type a nickname or a /command and press Enter" autofocus>
<script>
const log = document.getElementById("log");
const input = document.getElementById("line");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
function append(node) {
  log.appendChild(node);
  log.scrollTop = log.scrollHeight;
}
function text(s) {
  const div = document.createElement("div");
  div.textContent = s;
  append(div);
}
ws.onmessage = (ev) => {
  const line = ev.data;
  if (line.startsWith("PHOTO ")) {
    try {
      const p = JSON.parse(line.slice(6));
      const div = document.createElement("div");
      div.textContent = "[Photo#" + p.id + "] " + p.sender + ": " + p.name + (p.caption ? " (" + p.caption + ")" : "");
      const img = document.createElement("img");
      img.className = "photo";
      img.src = "data:" + p.mime + ";base64," + p.data;
      div.appendChild(img);
      append(div);
      return;
    } catch (e) { /* fall through to plain text */ }
  }
  text(line);
};
ws.onclose = () => text("[Disconnected from server]");
input.addEventListener("keydown", (ev) => {
  if (ev.key !== "Enter" || !input.value) return;
  ws.send(input.value);
  input.value = "";
});
</script>
</body>
</html>
`
