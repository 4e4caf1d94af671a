package server

import (
	"bufio"
	"errors"
	"io"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/voice-hub/voice-hub/internal/speech"
)

type convertRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed"`
	Stream bool    `json:"stream"`
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// registerRoutes 挂载健康检查、转换接口与 /-/ 诊断接口。
func registerRoutes(app *fiber.App, svc *speech.Service, logger *logrus.Logger) {
	app.Get("/", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Server is running"})
	})

	app.Post("/api/convert", func(c fiber.Ctx) error {
		var req convertRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "No data provided"})
		}
		if req.Voice == "" {
			req.Voice = "default"
		}
		if req.Speed == 0 {
			req.Speed = 1.0
		}

		params := speech.SynthesisRequest{Text: req.Text, Voice: req.Voice, Speed: req.Speed}

		if req.Stream {
			return streamConvert(c, svc, logger, params)
		}

		audio, err := svc.Synthesize(c.Context(), params)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set("Content-Type", "audio/wav")
		c.Set("Content-Disposition", `attachment; filename="speech.wav"`)
		return c.Send(audio)
	})

	app.Post("/api/transcribe", func(c fiber.Ctx) error {
		header, err := c.FormFile("audio")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "No audio file provided"})
		}
		if header.Filename == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "No selected file"})
		}

		file, err := header.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "No audio file provided"})
		}
		defer file.Close()

		audio, err := io.ReadAll(file)
		if err != nil {
			// 读到一半失败的音频不能送去转写，截断载荷会产出错误指纹。
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Failed to read audio file"})
		}

		transcript, err := svc.Transcribe(c.Context(), audio)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"transcript": transcript})
	})

	app.Post("/api/chat", func(c fiber.Ctx) error {
		var req chatRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "No data provided"})
		}

		reply, err := svc.Chat(c.Context(), req.UserID, req.Message)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"reply": reply})
	})

	app.Get("/-/requests", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"active": svc.Active().Snapshot()})
	})

	app.Get("/-/cache", func(c fiber.Ctx) error {
		hits, misses, size := svc.CacheStats()
		return c.JSON(fiber.Map{
			"memory_hits":   hits,
			"memory_misses": misses,
			"memory_items":  size,
		})
	})
}

// streamConvert 通过分块响应增量交付音频。入参校验必须在
// SendStreamWriter 之前完成：回调一旦开始，状态码和响应头已经提交，
// 校验错误只能以 200 返回空体。
func streamConvert(c fiber.Ctx, svc *speech.Service, logger *logrus.Logger, params speech.SynthesisRequest) error {
	if err := svc.ValidateSynthesis(params); err != nil {
		return writeServiceError(c, err)
	}

	ctx := c.Context()
	requestID := RequestID(c)

	c.Set("Content-Type", "audio/wav")
	return c.SendStreamWriter(func(w *bufio.Writer) {
		if err := svc.SynthesizeStream(ctx, params, flushWriter{w}); err != nil {
			// 响应头已经发出，只能记录后中断连接。
			logger.WithError(err).WithFields(logrus.Fields{
				"action":     "stream_failed",
				"request_id": requestID,
			}).Error("convert_stream_failed")
		}
	})
}

// flushWriter 每写完一个分块立即冲刷，保证客户端按到达顺序收到字节。
type flushWriter struct {
	w *bufio.Writer
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, f.w.Flush()
}

// writeServiceError 把服务层错误分类映射为 HTTP 状态码，响应体保持
// {"message": ...} 形态。
func writeServiceError(c fiber.Ctx, err error) error {
	var compErr *speech.ComputationError
	switch {
	case speech.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case speech.IsTimeout(err):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"message": "conversion timed out, please retry"})
	case errors.As(err, &compErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "conversion failed"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
}
