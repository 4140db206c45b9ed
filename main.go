package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/tali0517/ST0263-p1/client"
	"github.com/tali0517/ST0263-p1/datanode"
	"github.com/tali0517/ST0263-p1/metadatanode"
	"github.com/tali0517/ST0263-p1/pkg/command"
	"github.com/tali0517/ST0263-p1/util"
)

var (
	debug         bool
	leaderAddress string
)

func newClient() *client.Client {
	return &client.Client{LeaderAddress: leaderAddress, Debug: debug}
}

func runMetaDataNode(set *flag.FlagSet) func([]string) error {
	listen := set.String("listen", ":5050", "address to accept connections on")
	threshold := set.Duration("disconnectThreshold", metadatanode.DefaultDisconnectThreshold, "forget DataNodes silent for longer than this")
	sweep := set.Duration("sweepInterval", metadatanode.DefaultHeartbeatInterval, "how often to look for silent DataNodes")
	return func([]string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		_, err := metadatanode.Create(ctx, metadatanode.Config{
			Listener:            util.Listen(*listen),
			Debug:               debug,
			DisconnectThreshold: *threshold,
			SweepInterval:       *sweep,
		})
		if err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}
}

func runDataNode(set *flag.FlagSet) func([]string) error {
	listen := set.String("listen", ":0", "address to accept connections on (port 0=random)")
	addr := set.String("addr", "", "address announced to others (default: the listen address)")
	dataDir := set.String("dataDir", "_data", "directory to store data")
	heartbeat := set.Duration("heartbeatInterval", metadatanode.DefaultHeartbeatInterval, "")
	partners := set.String("partners", "", "comma separated DataNodes that receive replica blocks")
	discover := set.Bool("discover", false, "find replication partners on the LAN")
	blockSize := set.Int("blockSize", 1024*1024, "replica block size in bytes")
	capacity := set.Int64("capacity", 0, "bytes this node may use, reported to the MetaDataNode (0=unknown)")
	integrity := set.Duration("integrityInterval", time.Minute, "how often to verify replica blocks")
	return func([]string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		var partnerList []string
		for _, p := range strings.Split(*partners, ",") {
			if p = strings.TrimSpace(p); p != "" {
				partnerList = append(partnerList, p)
			}
		}
		_, err := datanode.Create(ctx, datanode.Config{
			DataDir:           *dataDir,
			Debug:             debug,
			Listener:          util.Listen(*listen),
			Addr:              *addr,
			LeaderAddress:     leaderAddress,
			HeartbeatInterval: *heartbeat,
			Partners:          partnerList,
			Discover:          *discover,
			BlockSize:         *blockSize,
			Capacity:          *capacity,
			IntegrityInterval: *integrity,
		})
		if err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}
}

func runUpload(set *flag.FlagSet) func([]string) error {
	name := set.String("name", "", "name to store the file under (default: base name of FILE)")
	return func(args []string) error {
		if len(args) != 1 {
			return errors.New("usage: upload [-name NAME] FILE")
		}
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		if *name == "" {
			*name = path.Base(args[0])
		}
		addrs, err := newClient().Upload(*name, file)
		if err != nil {
			return err
		}
		fmt.Println("Stored '"+*name+"' on", strings.Join(addrs, " "))
		return nil
	}
}

func runDownload(set *flag.FlagSet) func([]string) error {
	out := set.String("o", "", "write to this file (default: the file name)")
	from := set.String("from", "", "DataNode to download from (default: ask the MetaDataNode)")
	return func(args []string) error {
		if len(args) != 1 {
			return errors.New("usage: download [-o OUT] [-from ADDR] NAME")
		}
		name := args[0]
		if *out == "" {
			*out = name
		}
		file, err := os.Create(*out)
		if err != nil {
			return err
		}
		c := newClient()
		var n int64
		if *from != "" {
			n, err = c.DownloadFrom(*from, name, file)
		} else {
			n, err = c.Download(name, file)
		}
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(*out)
			return err
		}
		fmt.Println("Downloaded", n, "bytes to", *out)
		return nil
	}
}

func runList(set *flag.FlagSet) func([]string) error {
	return func([]string) error {
		files, err := newClient().ListFiles()
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	}
}

func runFind(set *flag.FlagSet) func([]string) error {
	return func(args []string) error {
		if len(args) != 1 {
			return errors.New("usage: find NAME")
		}
		addrs, err := newClient().FindFile(args[0])
		if err != nil {
			return err
		}
		for _, a := range addrs {
			fmt.Println(a)
		}
		return nil
	}
}

func runInventory(set *flag.FlagSet) func([]string) error {
	return func(args []string) error {
		if len(args) != 1 {
			return errors.New("usage: inventory ADDR")
		}
		files, err := newClient().ListInventory(args[0])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	}
}

func main() {
	app := command.App(path.Base(os.Args[0]))
	app.Global(func(set *flag.FlagSet) {
		set.BoolVar(&debug, "debug", false, "Show RPC conversations")
		set.StringVar(&leaderAddress, "leader", "localhost:5050", "MetaDataNode address")
	})
	app.Command("metadatanode", "Keep track of DataNodes and the files they hold", runMetaDataNode)
	app.Command("datanode", "Store files and replica blocks", runDataNode)
	app.Command("upload", "Upload a file to two DataNodes", runUpload)
	app.Command("download", "Download a file", runDownload)
	app.Command("ls", "List every file in the cluster", runList)
	app.Command("find", "List the DataNodes holding a file", runFind)
	app.Command("inventory", "List the files a single DataNode holds", runInventory)
	os.Exit(app.Run(os.Args[1:]))
}
