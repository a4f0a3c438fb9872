package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"trainer/internal/config"
	"trainer/internal/queue"
	"trainer/internal/run"
)

var (
	enqueueRunID        string
	enqueueQueueKey     string
	enqueueModelFamily  string
	enqueueModelSize    string
	enqueueMaxSeqLen    int
	enqueueNumEpochs    int
	enqueueBatchSize    int
	enqueueLearningRate float64
	enqueueCorpusPath   string
	enqueueTokenizerID  string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Admit a new training run: record it as queued, then push the job",
	Long: `Creates a run record with status queued in the shared store and pushes the
train job onto the worker queue, in that order, so the run is observable the
moment it is queued. Prints the run ID; generated from the model family and
size unless --run-id is given.

Examples:
  trainer-maintenance enqueue --model-family gpt2 --model-size small --epochs 3
  trainer-maintenance enqueue --model-family gpt2 --tokenizer-id tok-1 --corpus-path corpus/train.txt`,
	Args: cobra.NoArgs,
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().StringVar(&enqueueRunID, "run-id", "", "run identifier (default: generated)")
	enqueueCmd.Flags().StringVar(&enqueueQueueKey, "queue-key", config.GetEnv("QUEUE_KEY", "trainer:jobs"), "Redis list the workers consume")
	enqueueCmd.Flags().StringVar(&enqueueModelFamily, "model-family", "", "model family to train (required)")
	enqueueCmd.Flags().StringVar(&enqueueModelSize, "model-size", "small", "model size variant")
	enqueueCmd.Flags().IntVar(&enqueueMaxSeqLen, "max-seq-len", 512, "maximum sequence length")
	enqueueCmd.Flags().IntVar(&enqueueNumEpochs, "epochs", 1, "number of training epochs")
	enqueueCmd.Flags().IntVar(&enqueueBatchSize, "batch-size", 8, "training batch size")
	enqueueCmd.Flags().Float64Var(&enqueueLearningRate, "learning-rate", 3e-4, "optimizer learning rate")
	enqueueCmd.Flags().StringVar(&enqueueCorpusPath, "corpus-path", "", "training corpus path")
	enqueueCmd.Flags().StringVar(&enqueueTokenizerID, "tokenizer-id", "", "tokenizer identifier")

	_ = enqueueCmd.MarkFlagRequired("model-family")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := run.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := queue.NewRedisQueue(cfg.RedisURL, enqueueQueueKey)
	if err != nil {
		return err
	}
	defer q.Close()

	req := queue.TrainRequest{
		ModelFamily:  enqueueModelFamily,
		ModelSize:    enqueueModelSize,
		MaxSeqLen:    enqueueMaxSeqLen,
		NumEpochs:    enqueueNumEpochs,
		BatchSize:    enqueueBatchSize,
		LearningRate: enqueueLearningRate,
		CorpusPath:   enqueueCorpusPath,
		TokenizerID:  enqueueTokenizerID,
	}

	runID, err := queue.NewEnqueuer(store, q).Enqueue(cmd.Context(), req, enqueueRunID)
	if err != nil {
		return err
	}

	return printResult(map[string]string{"run_id": runID}, func() {
		fmt.Printf("Enqueued %s\n", runID)
	})
}
