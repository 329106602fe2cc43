package main

import (
	"os"
	"os/signal"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/mekides/tictactoe-services/configs"
	"github.com/mekides/tictactoe-services/internal/archivesvc/service"
	"github.com/mekides/tictactoe-services/internal/archivesvc/store"
	"github.com/mekides/tictactoe-services/internal/comm"
	"github.com/mekides/tictactoe-services/internal/db"
	natscli "github.com/mekides/tictactoe-services/internal/nats"
)

const SERVICE_NAME = "archive"

const archiveCollection = "game_archives"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	// Mongo connection for archive documents
	mdb, cancel, err := db.ConnectToDB()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer cancel()
	log.Printf("mongo connection established successfully")

	// retention in days, 0 keeps archives forever
	ttlDays, _ := strconv.Atoi(os.Getenv("ARCHIVE_TTL_DAYS"))
	if ttlDays > 0 {
		db.CreateTTLIndexForCollection(mdb, archiveCollection)
	}

	// NATS connection
	n, err := natscli.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer n.Conn.Close()
	log.Infof("NATS connected at %s", n.Url)

	archiveStore := store.NewArchiveStore(mdb, archiveCollection)
	archiveService := service.NewArchiveService(archiveStore, time.Duration(ttlDays)*24*time.Hour)

	sub, err := archiveService.Subscribe(n.Conn, comm.GameTopic)
	if err != nil {
		log.Fatalf("Failed to subscribe to game events: %v", err)
	}

	log.Infof("%s service consuming %s", SERVICE_NAME, comm.GameTopic)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
