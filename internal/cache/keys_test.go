package cache

import (
	"bytes"
	"strings"
	"testing"
)

func TestSynthesisKeyDeterministic(t *testing.T) {
	a := SynthesisKey("Hello", "male", 1.0)
	b := SynthesisKey("Hello", "male", 1.0)
	if a != b {
		t.Fatalf("相同参数应得到相同 key: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("key 应为 64 位十六进制，得到 %d 位", len(a))
	}
}

func TestSynthesisKeyVariesByParams(t *testing.T) {
	base := SynthesisKey("Hello", "male", 1.0)
	if SynthesisKey("Hello!", "male", 1.0) == base {
		t.Fatalf("文本不同时 key 不应相同")
	}
	if SynthesisKey("Hello", "female", 1.0) == base {
		t.Fatalf("音色不同时 key 不应相同")
	}
	if SynthesisKey("Hello", "male", 1.5) == base {
		t.Fatalf("速度不同时 key 不应相同")
	}
}

func TestFastSynthesisKeyCollidesOnSharedPrefix(t *testing.T) {
	prefix := strings.Repeat("a", fastKeyRunes)
	first := prefix + " tail one"
	second := prefix + " tail two"

	if FastSynthesisKey(first, "default", 1.0) != FastSynthesisKey(second, "default", 1.0) {
		t.Fatalf("同前缀长文本的 fast key 应相同")
	}
	if SynthesisKey(first, "default", 1.0) == SynthesisKey(second, "default", 1.0) {
		t.Fatalf("完整 key 不应碰撞")
	}
}

func TestAudioFingerprintSmallPayload(t *testing.T) {
	payload := []byte("tiny audio")
	if AudioFingerprint(payload) != AudioFingerprint(append([]byte(nil), payload...)) {
		t.Fatalf("相同载荷应得到相同指纹")
	}
	if AudioFingerprint(payload) == AudioFingerprint([]byte("tiny audiX")) {
		t.Fatalf("不同载荷不应同指纹")
	}
}

func TestAudioFingerprintSampledPath(t *testing.T) {
	big := bytes.Repeat([]byte("abcdefgh"), 128*1024) // 1 MiB，超过采样阈值

	first := AudioFingerprint(big)
	second := AudioFingerprint(append([]byte(nil), big...))
	if first != second {
		t.Fatalf("采样指纹应可复现")
	}

	// 修改一个采样窗口内的字节应改变指纹。
	mutated := append([]byte(nil), big...)
	mutated[0] ^= 0xFF
	if AudioFingerprint(mutated) == first {
		t.Fatalf("采样窗口内的差异应反映到指纹")
	}

	// 长度不同的载荷不应同指纹。
	if AudioFingerprint(big[:len(big)-1]) == first {
		t.Fatalf("载荷长度应参与指纹")
	}
}
