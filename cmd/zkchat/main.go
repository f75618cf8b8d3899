package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zkchat/go-client/internal/chat"
	"zkchat/go-client/internal/config"
	"zkchat/go-client/internal/identity"
	"zkchat/go-client/internal/indexer"
	"zkchat/go-client/internal/platform/metrics"
	"zkchat/go-client/internal/platform/privacylog"
	"zkchat/go-client/internal/platform/ratelimiter"
	"zkchat/go-client/internal/publish"
	"zkchat/go-client/internal/zk"
	"zkchat/go-client/pkg/message"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	createAccount := flag.Bool("create-account", false, "create a new account and print the mnemonic")
	mnemonic := flag.String("mnemonic", "", "import an account from a BIP-39 mnemonic")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (optional)")
	postContent := flag.String("post", "", "publish a post with the given content and exit")
	dmReceiver := flag.String("dm", "", "send -content as a direct message to this address and exit")
	dmContent := flag.String("content", "", "message body for -dm")
	flag.Parse()
	if *showVersion {
		fmt.Printf("zkchat version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(*configPath)
	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))

	keystorePath := filepath.Join(cfg.Storage.DataDir, "keystore.json")
	var key *identity.SigningKey
	var err error
	switch {
	case *createAccount:
		var phrase string
		phrase, key, err = identity.NewAccount()
		if err != nil {
			log.Fatalf("zkchat failed to create account: %v", err)
		}
		fmt.Printf("mnemonic: %s\n", phrase)
	case *mnemonic != "":
		key, err = identity.ImportAccount(*mnemonic)
		if err != nil {
			log.Fatalf("zkchat failed to import account: %v", err)
		}
	case cfg.Storage.Passphrase != "":
		key, err = identity.LoadKeystore(keystorePath, cfg.Storage.Passphrase)
		if err != nil {
			log.Fatalf("zkchat failed to unlock keystore: %v", err)
		}
	default:
		log.Fatal("zkchat requires -create-account, -mnemonic, or a sealed keystore")
	}
	if cfg.Storage.Passphrase != "" && (*createAccount || *mnemonic != "") {
		if err := identity.SaveKeystore(keystorePath, cfg.Storage.Passphrase, key); err != nil {
			log.Fatalf("zkchat failed to seal keystore: %v", err)
		}
	}

	ecdhPair, err := identity.DeriveECDHKeyPair(key)
	if err != nil {
		log.Fatalf("zkchat failed to derive ecdh keypair: %v", err)
	}

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	api := indexer.New(cfg.Indexer.APIBase, logger)

	var backend zk.ProvingBackend
	if cfg.Prover.Kind == "semaphore" {
		backend = zk.NewSemaphoreBackend(cfg.Prover.WorkerEndpoint)
	} else {
		backend = zk.NewRLNBackend(cfg.Prover.WorkerEndpoint)
	}
	prover := zk.NewProver(api, backend, logger,
		zk.WithEpochWindow(cfg.Prover.EpochWindow),
		zk.WithMetrics(recorder),
	)
	limiter := ratelimiter.New(cfg.Limits.PublishPerSecond, cfg.Limits.PublishBurst, 0)
	publisher := publish.NewPublisher(prover, api, logger, publish.WithLimiter(limiter))

	cipher := chat.NewCipher()
	if cfg.Chat.HardenSharedKey {
		cipher = chat.NewHardenedCipher()
	}
	bucketPath := filepath.Join(cfg.Storage.DataDir, "chats.json")
	var store chat.BucketStore
	if cfg.Storage.Passphrase != "" {
		store = chat.NewEncryptedFileBucketStore(bucketPath, cfg.Storage.Passphrase)
	} else {
		store = chat.NewFileBucketStore(bucketPath)
	}
	client := chat.NewClient(api, store, chat.NewHub(), cipher, logger, chat.WithMetrics(recorder))
	client.ImportIdentity(chat.Session{Address: key.Address(), ECDH: ecdhPair})

	logger.Info("zkchat client ready", "address", key.Address())

	wallet := identity.Wallet{Address: key.Address(), Key: key}
	if *postContent != "" {
		post, err := message.NewPost(message.PostSubtypeDefault, wallet.Address, message.PostPayload{Content: *postContent}, time.Time{})
		if err != nil {
			log.Fatalf("zkchat rejected the post: %v", err)
		}
		receipt, err := publisher.Submit(ctx, wallet, post)
		if err != nil {
			log.Fatalf("zkchat failed to publish: %v", err)
		}
		fmt.Printf("published %s\n", receipt.MessageID)
		return
	}
	if *dmReceiver != "" {
		dm, err := client.CreateDM(*dmReceiver, false)
		if err != nil {
			log.Fatalf("zkchat failed to open the conversation: %v", err)
		}
		sent, err := client.SendDirectMessage(ctx, dm, *dmContent)
		if err != nil {
			log.Fatalf("zkchat failed to send: %v", err)
		}
		fmt.Printf("sent %s\n", sent.MessageID)
		return
	}

	if chats, err := client.FetchActiveChats(ctx); err != nil {
		logger.Warn("active chat sync failed", "err", err)
	} else {
		logger.Info("active chats synced", "count", len(chats))
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics listener stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	log.Println("zkchat stopped")
}
