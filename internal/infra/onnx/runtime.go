package onnx

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ortRunner drives a single-input, single-output onnxruntime session.
type ortRunner struct {
	session *ort.DynamicAdvancedSession
	ownsEnv bool
}

func newORTRunner(cfg DetectorConfig, logger *zap.Logger) (*ortRunner, error) {
	ownsEnv := false
	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		ownsEnv = true
	}

	r, err := openSession(cfg, logger)
	if err != nil {
		if ownsEnv {
			ort.DestroyEnvironment()
		}
		return nil, err
	}
	r.ownsEnv = ownsEnv
	return r, nil
}

func openSession(cfg DetectorConfig, logger *zap.Logger) (*ortRunner, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model inputs: %w", err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("model has %d inputs and %d outputs, want 1 and at least 1", len(inputs), len(outputs))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("failed to set graph optimization: %w", err)
	}
	if cfg.UseCUDA {
		enableCUDA(opts, logger)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &ortRunner{session: session}, nil
}

// enableCUDA falls back to the CPU provider when CUDA is unavailable.
func enableCUDA(opts *ort.SessionOptions, logger *zap.Logger) {
	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		logger.Warn("CUDA not available, using CPU", zap.Error(err))
		return
	}
	defer cudaOpts.Destroy()

	if err := cudaOpts.Update(map[string]string{"device_id": "0"}); err != nil {
		logger.Warn("failed to configure CUDA provider, using CPU", zap.Error(err))
		return
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		logger.Warn("failed to append CUDA provider, using CPU", zap.Error(err))
		return
	}
	logger.Info("CUDA execution provider enabled")
}

func (r *ortRunner) run(input []float32, size int) ([]float32, []int64, error) {
	in, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), input)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	outputs := make([]ort.Value, 1)
	if err := r.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, nil, err
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("output tensor is not float32")
	}

	// The tensor memory is freed on Destroy.
	data := append([]float32(nil), tensor.GetData()...)
	shape := append([]int64(nil), tensor.GetShape()...)
	return data, shape, nil
}

func (r *ortRunner) close() error {
	var err error
	if r.session != nil {
		err = r.session.Destroy()
		r.session = nil
	}
	if r.ownsEnv {
		if envErr := ort.DestroyEnvironment(); err == nil {
			err = envErr
		}
		r.ownsEnv = false
	}
	return err
}
