package tally_test

import (
	"context"
	"fmt"

	"github.com/ryhazerus/tally"
	"github.com/ryhazerus/tally/store"
)

func ExampleNew() {
	svc := tally.New(tally.WithStore(store.NewMemoryStore()))
	defer svc.Close()

	fmt.Println("service created")
	// Output: service created
}

func ExampleService_Increment() {
	svc := tally.New()
	defer svc.Close()

	ctx := context.Background()
	fmt.Println(svc.Increment(ctx, "main"))
	fmt.Println(svc.Increment(ctx, "main"))
	fmt.Println(svc.Reset(ctx, "main"))
	fmt.Println(svc.Increment(ctx, "main"))
	// Output:
	// 1 <nil>
	// 2 <nil>
	// 0 <nil>
	// 1 <nil>
}

func ExampleService_Value() {
	svc := tally.New()
	defer svc.Close()

	ctx := context.Background()
	v, _ := svc.Value(ctx, "visits")
	c, _ := svc.GetOrCreate(ctx, "visits")
	fmt.Println(v, c.Name, c.ID)
	// Output: 0 visits 1
}
