package server

import "html/template"

// pageData feeds the upload page. Transcript and Error are mutually
// exclusive; DownloadName is set alongside Transcript.
type pageData struct {
	Error        string
	Transcript   string
	DownloadName string
}

var pageTemplate = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="zh">
  <head>
    <meta charset="utf-8">
    <title>听写 · 视频语音转写</title>
    <style>
      body {
        margin: 0;
        font-family: "Inter", "Segoe UI", -apple-system, sans-serif;
        background: linear-gradient(145deg, #536dfe, #7c4dff);
        color: #1f1f2d;
        display: flex;
        align-items: center;
        justify-content: center;
        min-height: 100vh;
        padding: 2rem 1.5rem;
      }
      .page { width: min(860px, 100%); }
      header { text-align: center; color: white; margin-bottom: 2rem; }
      header p { color: rgba(255, 255, 255, 0.8); max-width: 620px; margin: 0.75rem auto 0; line-height: 1.6; }
      .card {
        background: rgba(255, 255, 255, 0.9);
        border-radius: 16px;
        padding: 2rem;
        box-shadow: 0 20px 60px rgba(30, 42, 92, 0.25);
      }
      form { display: flex; flex-direction: column; gap: 1.2rem; }
      .hint { text-align: center; font-size: 0.95rem; color: #5f6a7d; }
      button[type="submit"] {
        border: none;
        border-radius: 40px;
        padding: 0.9rem 2.2rem;
        font-size: 1rem;
        font-weight: 600;
        background: linear-gradient(135deg, #5c6bf7, #8f67ff);
        color: white;
        cursor: pointer;
        align-self: center;
      }
      .status.error {
        margin-top: 1.4rem;
        padding: 1rem 1.2rem;
        border-radius: 12px;
        background: rgba(255, 82, 82, 0.12);
        color: #d84343;
      }
      .links { margin-top: 1.4rem; text-align: center; }
      .links a { color: #4c5be4; font-weight: 600; text-decoration: none; }
      .result {
        margin-top: 1.6rem;
        background: rgba(82, 118, 255, 0.14);
        border-radius: 14px;
        padding: 1.4rem;
        white-space: pre-wrap;
        line-height: 1.7;
      }
      footer { margin-top: 2rem; text-align: center; color: rgba(255, 255, 255, 0.72); font-size: 0.9rem; }
    </style>
  </head>
  <body>
    <div class="page">
      <header>
        <h1>视频语音转写</h1>
        <p>上传 MP4 或其他 ffmpeg 支持的媒体文件，系统会在本地完成音频提取、语音识别与标点恢复，全程不依赖外网。</p>
      </header>
      <div class="card">
        <form method="post" action="/" enctype="multipart/form-data">
          <input type="file" id="video" name="video" accept="video/*,audio/*" required>
          <p class="hint">建议上传时长不超过 30 分钟的文件，仅在本地处理。</p>
          <button type="submit">开始转写</button>
        </form>
        {{if .Error}}
          <div class="status error">{{.Error}}</div>
        {{end}}
        {{if .DownloadName}}
          <div class="links">
            转写完成，<a href="/transcripts/{{.DownloadName}}">下载转写结果</a>
          </div>
        {{end}}
        {{if .Transcript}}
          <div class="result"><strong>识别结果</strong>
{{.Transcript}}</div>
        {{end}}
      </div>
      <footer>FunASR 本地部署 · ModelScope 中文模型</footer>
    </div>
  </body>
</html>
`))
