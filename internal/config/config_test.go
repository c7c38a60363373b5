package config

import (
	"testing"
	"time"
)

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("PIPELINE_BUDGET", "")
	t.Setenv("PIPELINE_MAX_STEP_RETRIES", "")
	t.Setenv("PIPELINE_MAX_RETRIES", "")
	t.Setenv("MERGE_MIN_SHARED_TOPICS", "")
	t.Setenv("TTS_MAX_CHARS", "")

	cfg := Load()
	if cfg.PipelineBudget != 55*time.Second {
		t.Fatalf("expected default budget 55s, got %s", cfg.PipelineBudget)
	}
	if cfg.PipelineMaxStepRetries != 2 {
		t.Fatalf("expected default step retries 2, got %d", cfg.PipelineMaxStepRetries)
	}
	if cfg.PipelineMaxRetries != 3 {
		t.Fatalf("expected default max retries 3, got %d", cfg.PipelineMaxRetries)
	}
	if cfg.MergeMinSharedTopics != 2 {
		t.Fatalf("expected default min shared topics 2, got %d", cfg.MergeMinSharedTopics)
	}
	if cfg.TTSMaxChars != 1900 {
		t.Fatalf("expected default tts max chars 1900, got %d", cfg.TTSMaxChars)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("PIPELINE_BUDGET", "30000")
	t.Setenv("WORKER_ADVANCE_TIMEOUT", "2m")
	t.Setenv("PIPELINE_MAX_RETRIES", "5")
	t.Setenv("PIPELINE_MAX_STEP_RETRIES", "0")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("MEDIA_AUDIO_ENABLED", "false")

	cfg := Load()
	if cfg.PipelineBudget != 30*time.Second {
		t.Fatalf("expected millisecond budget override, got %s", cfg.PipelineBudget)
	}
	if cfg.WorkerAdvanceTimeout != 2*time.Minute {
		t.Fatalf("expected duration override, got %s", cfg.WorkerAdvanceTimeout)
	}
	if cfg.PipelineMaxRetries != 5 {
		t.Fatalf("expected max retries 5, got %d", cfg.PipelineMaxRetries)
	}
	if cfg.PipelineMaxStepRetries != 0 {
		t.Fatalf("expected step retries 0 to pass through, got %d", cfg.PipelineMaxStepRetries)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected lowercased provider, got %q", cfg.LLMProvider)
	}
	if cfg.MediaAudioEnabled {
		t.Fatalf("expected audio disabled")
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("PIPELINE_BUDGET", "soon")
	t.Setenv("PIPELINE_MAX_STEP_RETRIES", "many")

	cfg := Load()
	if cfg.PipelineBudget != 55*time.Second {
		t.Fatalf("expected fallback budget, got %s", cfg.PipelineBudget)
	}
	if cfg.PipelineMaxStepRetries != 2 {
		t.Fatalf("expected fallback step retries, got %d", cfg.PipelineMaxStepRetries)
	}
}
