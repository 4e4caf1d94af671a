package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// fastKeyRunes 限定 fast key 参与哈希的文本前缀长度。
	fastKeyRunes = 64

	// fingerprintThreshold 以下的音频直接整体哈希，以上走采样。
	fingerprintThreshold = 256 * 1024

	fingerprintWindows    = 16
	fingerprintWindowSize = 4 * 1024
)

// SynthesisKey 根据合成请求的全部语义参数派生完整缓存 key。
// 相同 (text, voice, speed) 必定得到相同 key。
func SynthesisKey(text, voice string, speed float64) Key {
	sum := sha256.Sum256([]byte(fmt.Sprintf("tts|%s|%s|%.2f", text, voice, speed)))
	return Key(hex.EncodeToString(sum[:]))
}

// FastSynthesisKey 只取文本前 fastKeyRunes 个 rune 参与哈希，供内存层加速查找。
// 超长文本可能与同前缀的其它文本碰撞，调用方必须用完整 key 复核命中。
func FastSynthesisKey(text, voice string, speed float64) Key {
	runes := []rune(text)
	if len(runes) > fastKeyRunes {
		runes = runes[:fastKeyRunes]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("tts-fast|%s|%s|%.2f", string(runes), voice, speed)))
	return Key(hex.EncodeToString(sum[:]))
}

// SynthesisRef 同时派生 fast/full key，合成路径统一走这里。
func SynthesisRef(text, voice string, speed float64) Ref {
	return Ref{
		Fast: FastSynthesisKey(text, voice, speed),
		Full: SynthesisKey(text, voice, speed),
	}
}

// AudioFingerprint 为音频载荷计算确定性指纹。小载荷整体哈希；
// 大载荷均匀采样 fingerprintWindows 个固定大小窗口后哈希拼接结果，
// 避免对整段音频做摘要。采样路径出现任何意外都退回整体哈希，不向调用方报错。
func AudioFingerprint(payload []byte) Key {
	if len(payload) <= fingerprintThreshold {
		return hashBytes(payload)
	}

	key, ok := sampledFingerprint(payload)
	if !ok {
		return hashBytes(payload)
	}
	return key
}

func sampledFingerprint(payload []byte) (key Key, ok bool) {
	defer func() {
		if recover() != nil {
			key, ok = "", false
		}
	}()

	stride := len(payload) / fingerprintWindows
	if stride < fingerprintWindowSize {
		return "", false
	}

	h := sha256.New()
	// 长度参与哈希，防止不同大小的载荷因采样窗口巧合而同值。
	fmt.Fprintf(h, "stt|%d|", len(payload))
	for i := 0; i < fingerprintWindows; i++ {
		start := i * stride
		end := start + fingerprintWindowSize
		if end > len(payload) {
			end = len(payload)
		}
		h.Write(payload[start:end])
	}
	return Key(hex.EncodeToString(h.Sum(nil))), true
}

func hashBytes(payload []byte) Key {
	h := sha256.New()
	h.Write([]byte("stt|full|"))
	h.Write(payload)
	return Key(hex.EncodeToString(h.Sum(nil)))
}
