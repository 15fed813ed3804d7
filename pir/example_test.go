package pir_test

import (
	"fmt"
	"log"

	"github.com/dimakogan/hpir/hepir"
	"github.com/dimakogan/hpir/pir"
)

func Example() {
	eng, err := hepir.New()
	if err != nil {
		log.Fatal(err)
	}

	server, err := pir.NewServer(eng, []uint32{0, 10, 20, 30, 40, 50, 60, 70})
	if err != nil {
		log.Fatal(err)
	}
	defer server.Close()

	client, err := pir.NewClient(eng, 4, 8)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	query, err := client.Query(5)
	if err != nil {
		log.Fatal(err)
	}
	// query and reply travel over the caller's transport
	reply, err := server.Reply(query)
	if err != nil {
		log.Fatal(err)
	}
	val, err := pir.DecodeReply[uint32](client, reply)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(val)
	// Output: 50
}
