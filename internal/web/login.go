package web

const loginHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>VitalVest · Login</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    background: #0f1419;
    color: #e4e4e7;
    min-height: 100vh;
    display: flex;
    align-items: center;
    justify-content: center;
  }
  .login-wrap {
    width: 100%;
    max-width: 380px;
    padding: 24px;
  }
  .login-logo {
    display: flex;
    align-items: center;
    justify-content: center;
    gap: 10px;
    margin-bottom: 32px;
  }
  .login-logo-text {
    font-size: 22px;
    font-weight: 700;
    color: #fff;
    letter-spacing: -0.4px;
  }
  .login-logo-text span { color: #2dd4bf; }
  .login-card {
    background: #1a2129;
    border: 1px solid #2b3540;
    border-radius: 14px;
    padding: 28px 28px 24px;
  }
  .login-title {
    font-size: 15px;
    font-weight: 600;
    color: #fff;
    margin-bottom: 4px;
  }
  .login-sub {
    font-size: 12px;
    color: #71717a;
    margin-bottom: 24px;
  }
  .login-error {
    background: rgba(248, 113, 113, 0.1);
    border: 1px solid rgba(248, 113, 113, 0.3);
    color: #f87171;
    border-radius: 8px;
    padding: 10px 12px;
    font-size: 12px;
    margin-bottom: 16px;
  }
  .field { margin-bottom: 16px; }
  .field label {
    display: block;
    font-size: 11px;
    font-weight: 600;
    text-transform: uppercase;
    letter-spacing: 0.6px;
    color: #a1a1aa;
    margin-bottom: 6px;
  }
  .field input {
    width: 100%;
    background: #0f1419;
    border: 1px solid #2b3540;
    border-radius: 8px;
    color: #e4e4e7;
    font-size: 14px;
    padding: 10px 12px;
    outline: none;
  }
  .field input:focus { border-color: #2dd4bf; }
  button {
    width: 100%;
    background: #2dd4bf;
    border: none;
    border-radius: 8px;
    color: #0f1419;
    font-size: 14px;
    font-weight: 600;
    padding: 11px;
    cursor: pointer;
    margin-top: 4px;
  }
  button:hover { background: #5eead4; }
</style>
</head>
<body>
<div class="login-wrap">
  <div class="login-logo">
    <div class="login-logo-text">Vital<span>Vest</span></div>
  </div>
  <div class="login-card">
    <div class="login-title">Iniciar sesi&oacute;n</div>
    <div class="login-sub">Panel de monitoreo del chaleco sensor</div>
    <!--ERROR-->
    <form method="POST" action="/login">
      <div class="field">
        <label for="username">Usuario</label>
        <input type="text" id="username" name="username" autocomplete="username" autofocus required>
      </div>
      <div class="field">
        <label for="password">Contrase&ntilde;a</label>
        <input type="password" id="password" name="password" autocomplete="current-password" required>
      </div>
      <button type="submit">Entrar</button>
    </form>
  </div>
</div>
</body>
</html>`
